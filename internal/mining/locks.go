package mining

import "sync"

// userLocks serializes session transitions per user. Handlers for
// different users run concurrently; two handlers for the same user never
// interleave, so a start racing an in-flight completion cannot
// double-credit or lose a session.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*sync.Mutex)}
}

// get returns the lock for userID, creating it on first use. Locks are
// never removed; the per-user footprint is one mutex.
func (l *userLocks) get(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.m[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.m[userID] = lk
	}
	return lk
}
