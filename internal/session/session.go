package session

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
)

// Session holds the per-user state of one cooking session: the last search,
// the selected recipe, and the live voice client if one is relaying.
type Session struct {
	ID string

	mu            sync.Mutex
	searchResults *domain.SearchResult
	recipe        *domain.DetailedRecipe
	voice         io.Closer
	lastActive    time.Time
	ended         bool
}

func newSession(id string) *Session {
	return &Session{ID: id, lastActive: time.Now()}
}

// SearchResults returns the results stored by the last search, or nil.
func (s *Session) SearchResults() *domain.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchResults
}

// SetSearchResults stores the results of a search.
func (s *Session) SetSearchResults(r *domain.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchResults = r
	s.lastActive = time.Now()
}

// Recipe returns the selected recipe, or nil if none was selected.
func (s *Session) Recipe() *domain.DetailedRecipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipe
}

// SelectRecipe stores the detailed recipe the voice assistant will guide through.
func (s *Session) SelectRecipe(r *domain.DetailedRecipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipe = r
	s.lastActive = time.Now()
}

// Voice returns the live voice client, or nil.
func (s *Session) Voice() io.Closer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// AttachVoice records c as the live voice client. A session relays to at most
// one voice client at a time, and none once it has been removed from the registry.
func (s *Session) AttachVoice(c io.Closer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return fmt.Errorf("session %q: %w", s.ID, domain.ErrNotFound)
	}
	if s.voice != nil {
		return domain.ErrVoiceActive
	}
	s.voice = c
	s.lastActive = time.Now()
	return nil
}

// DetachVoice clears the live voice client if it is still c.
func (s *Session) DetachVoice(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voice == c {
		s.voice = nil
	}
	s.lastActive = time.Now()
}

// end marks the session as removed and closes its live voice client, if any.
func (s *Session) end() error {
	s.mu.Lock()
	v := s.voice
	s.voice = nil
	s.ended = true
	s.mu.Unlock()
	if v == nil {
		return nil
	}
	return v.Close()
}

// endIfIdle ends the session if it has had no activity since cutoff and has
// no live voice client. It reports whether the session was ended.
func (s *Session) endIfIdle(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voice != nil || !s.lastActive.Before(cutoff) {
		return false
	}
	s.ended = true
	return true
}
