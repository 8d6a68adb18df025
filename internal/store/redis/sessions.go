// Package redis provides a Redis-backed session store for deployments
// that share session state across instances. SET NX gives the same
// atomic check-and-insert the sqlite store gets from its primary key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"

	"github.com/kubotlabs/minebot/pkg/models"
)

const keyPrefix = "minebot:session:"

// SessionStore stores running sessions as JSON values keyed by user.
type SessionStore struct {
	pool *redis.Pool
}

// NewSessionStore builds a store with a connection pool for addr.
func NewSessionStore(addr string) *SessionStore {
	return &SessionStore{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 240 * time.Second,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr)
			},
		},
	}
}

// Close releases the connection pool.
func (s *SessionStore) Close() error {
	return s.pool.Close()
}

func key(userID string) string {
	return keyPrefix + userID
}

// PutIfAbsent records the session with SET NX: check and insert are one
// server-side step. Sessions carry no TTL; the timer fire or a stop
// command removes them, and the startup sweep picks up survivors.
func (s *SessionStore) PutIfAbsent(ctx context.Context, sess *models.MiningSession) (bool, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	reply, err := redis.String(conn.Do("SET", key(sess.UserID), payload, "NX"))
	if errors.Is(err, redis.ErrNil) {
		// Key exists: the user is already mining
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set session: %w", err)
	}
	return reply == "OK", nil
}

// Get returns the user's running session, or nil when idle.
func (s *SessionStore) Get(ctx context.Context, userID string) (*models.MiningSession, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	payload, err := redis.Bytes(conn.Do("GET", key(userID)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess models.MiningSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Remove deletes the user's session. Reports whether one existed.
func (s *SessionStore) Remove(ctx context.Context, userID string) (bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	deleted, err := redis.Int(conn.Do("DEL", key(userID)))
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return deleted > 0, nil
}

// Running lists all running sessions via SCAN, used by the startup
// sweep.
func (s *SessionStore) Running(ctx context.Context) ([]*models.MiningSession, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	var out []*models.MiningSession
	cursor := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", keyPrefix+"*", "COUNT", 100))
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		if len(values) != 2 {
			return nil, fmt.Errorf("unexpected scan reply length %d", len(values))
		}

		cursor, err = redis.Int(values[0], nil)
		if err != nil {
			return nil, fmt.Errorf("parse scan cursor: %w", err)
		}
		keys, err := redis.Strings(values[1], nil)
		if err != nil {
			return nil, fmt.Errorf("parse scan keys: %w", err)
		}

		for _, k := range keys {
			payload, err := redis.Bytes(conn.Do("GET", k))
			if errors.Is(err, redis.ErrNil) {
				// Removed between SCAN and GET
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get session %s: %w", k, err)
			}
			var sess models.MiningSession
			if err := json.Unmarshal(payload, &sess); err != nil {
				return nil, fmt.Errorf("decode session %s: %w", k, err)
			}
			out = append(out, &sess)
		}

		if cursor == 0 {
			return out, nil
		}
	}
}
