package gorm

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kubotlabs/minebot/pkg/models"
)

// SessionStore is the durable session store. Sessions survive process
// restarts; the startup sweep reschedules their completion timers.
type SessionStore struct {
	store *Store
}

// NewSessionStore creates a session store over the shared connection.
func NewSessionStore(store *Store) *SessionStore {
	return &SessionStore{store: store}
}

// PutIfAbsent inserts the session unless the user already has one. The
// insert conflicts on the user_id primary key, so check and insert are
// a single atomic statement.
func (s *SessionStore) PutIfAbsent(ctx context.Context, sess *models.MiningSession) (bool, error) {
	row := Session{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		ChannelID: sess.ChannelID,
		Status:    string(models.SessionStatusRunning),
		StartedAt: sess.StartedAt,
		MaturesAt: sess.MaturesAt,
	}

	res := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Get returns the user's running session, or nil when idle.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.MiningSession, error) {
	var row Session
	err := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return rowToSession(&row), nil
}

// Remove deletes the user's session. Reports whether one existed.
func (s *SessionStore) Remove(ctx context.Context, userID string) (bool, error) {
	res := s.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&Session{})
	if res.Error != nil {
		return false, fmt.Errorf("delete session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Running lists all running sessions, oldest maturity first.
func (s *SessionStore) Running(ctx context.Context) ([]*models.MiningSession, error) {
	var rows []Session
	if err := s.store.DB.WithContext(ctx).
		Order("matures_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]*models.MiningSession, 0, len(rows))
	for i := range rows {
		out = append(out, rowToSession(&rows[i]))
	}
	return out, nil
}

func rowToSession(row *Session) *models.MiningSession {
	return &models.MiningSession{
		ID:        row.SessionID,
		UserID:    row.UserID,
		ChannelID: row.ChannelID,
		Status:    models.SessionStatus(row.Status),
		StartedAt: row.StartedAt,
		MaturesAt: row.MaturesAt,
	}
}
