// Package session provides the in-memory registry of recipe sessions.
package session

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/metrics"
)

const idPrefix = "session_"

// Registry maps session identifiers to sessions for the lifetime of the process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	next     atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Create allocates a new empty session and returns its identifier.
// Identifiers are never reused, even after the session is deleted.
func (r *Registry) Create() string {
	id := idPrefix + strconv.FormatUint(r.next.Add(1)-1, 10)

	r.mu.Lock()
	r.sessions[id] = newSession(id)
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	slog.Info("Session created", "session_id", id)
	return id
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// Delete closes the session's live voice client, if any, and removes the
// session. The entry stays visible until the voice client has been closed.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	if err := s.end(); err != nil {
		slog.Debug("Failed to close voice client", "session_id", id, "error", err)
	}
	delete(r.sessions, id)

	metrics.SessionsActive.Set(float64(len(r.sessions)))
	slog.Info("Session deleted", "session_id", id)
	return nil
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every live voice client and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if err := s.end(); err != nil {
			slog.Debug("Failed to close voice client", "session_id", id, "error", err)
		}
		delete(r.sessions, id)
	}
	metrics.SessionsActive.Set(0)
}

// SweepIdle removes sessions with no activity for longer than ttl.
// Sessions with a live voice client are never idle. It returns the number removed.
func (r *Registry) SweepIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if !s.endIfIdle(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
		slog.Info("Idle session expired", "session_id", id)
	}
	if removed > 0 {
		metrics.SessionsExpiredTotal.Add(float64(removed))
		metrics.SessionsActive.Set(float64(len(r.sessions)))
	}
	return removed
}
