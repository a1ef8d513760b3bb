// Package session tracks turbo dialing sessions: users who keep a standing
// conference open so that new parties can be dropped in without redirecting
// any legs first.
package session

import (
	"context"
	"sync"
	"time"
)

// Session is one user's active turbo conference.
type Session struct {
	UserID         string
	ConferenceName string
	// CallSID is the user's parked leg inside the conference.
	CallSID string
	// ExpiresAt bounds the session lifetime. The zero value means no expiry.
	ExpiresAt time.Time
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Registry is the read side of the turbo session store. Lookup returns nil
// when the user has no live session.
type Registry interface {
	Lookup(ctx context.Context, userID string) (*Session, error)
}

// MemoryRegistry keeps turbo sessions in memory. It backs single-process
// deployments and tests; clustered deployments read the dialer's shared
// PostgreSQL table instead.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*Session),
	}
}

// Lookup returns the user's session, or nil if none exists or it has expired.
// Expired sessions are dropped on read.
func (r *MemoryRegistry) Lookup(ctx context.Context, userID string) (*Session, error) {
	r.mu.RLock()
	sess, ok := r.sessions[userID]
	r.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if sess.Expired(time.Now()) {
		r.End(userID)
		return nil, nil
	}

	return sess, nil
}

// Put records a session for its user, replacing any existing one.
func (r *MemoryRegistry) Put(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.UserID] = sess
	r.mu.Unlock()
}

// End removes the user's session.
func (r *MemoryRegistry) End(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

// CleanExpired removes all expired sessions and returns how many were dropped.
func (r *MemoryRegistry) CleanExpired() int {
	now := time.Now()
	removed := 0

	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	r.mu.Unlock()

	return removed
}

// StartCleanupTicker runs a goroutine that periodically drops expired
// sessions. It stops when the provided context is cancelled.
func (r *MemoryRegistry) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanExpired()
			}
		}
	}()
}
