package mining

import (
	"context"
	"sync"

	"github.com/kubotlabs/minebot/pkg/models"
)

// SessionStore tracks running mining sessions keyed by user.
// Implementations must provide atomic check-and-insert and atomic
// remove so a straggling duplicate start and a concurrent completion
// cannot interleave.
type SessionStore interface {
	// PutIfAbsent records sess unless the user already has a running
	// session. Reports whether the insert happened.
	PutIfAbsent(ctx context.Context, sess *models.MiningSession) (bool, error)
	// Get returns the user's running session, or nil when idle.
	Get(ctx context.Context, userID string) (*models.MiningSession, error)
	// Remove deletes the user's session. Reports whether one existed.
	Remove(ctx context.Context, userID string) (bool, error)
	// Running lists all running sessions, used by the restart sweep.
	Running(ctx context.Context) ([]*models.MiningSession, error)
}

// MemoryStore is the in-process SessionStore. Sessions do not survive a
// restart; durable deployments use the sqlite or redis store instead.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.MiningSession
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.MiningSession)}
}

// PutIfAbsent inserts sess under the store lock; the check and the
// insert are one atomic step.
func (m *MemoryStore) PutIfAbsent(_ context.Context, sess *models.MiningSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sess.UserID]; exists {
		return false, nil
	}
	cp := *sess
	m.sessions[sess.UserID] = &cp
	return true, nil
}

// Get returns a copy of the user's running session, or nil.
func (m *MemoryStore) Get(_ context.Context, userID string) (*models.MiningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

// Remove deletes the user's session entry.
func (m *MemoryStore) Remove(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok, nil
}

// Running lists all running sessions.
func (m *MemoryStore) Running(_ context.Context) ([]*models.MiningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.MiningSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}
