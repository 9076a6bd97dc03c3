package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
)

type fakeVoice struct {
	mu      sync.Mutex
	closed  int
	onClose func()
}

func (f *fakeVoice) Close() error {
	f.mu.Lock()
	f.closed++
	cb := f.onClose
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (f *fakeVoice) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()
	id := r.Create()

	if id != "session_0" {
		t.Errorf("Expected first id session_0, got %s", id)
	}

	s, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.ID != id {
		t.Errorf("Expected session id %s, got %s", id, s.ID)
	}
	if s.Recipe() != nil || s.SearchResults() != nil || s.Voice() != nil {
		t.Error("Expected new session to be empty")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("session_42")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_DeleteUnknown(t *testing.T) {
	r := NewRegistry()

	if err := r.Delete("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_IDsNotReusedAfterDelete(t *testing.T) {
	r := NewRegistry()
	first := r.Create()
	second := r.Create()

	if err := r.Delete(first); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	third := r.Create()

	if third == first || third == second {
		t.Errorf("Expected fresh id, got %s (existing %s, %s)", third, first, second)
	}
	if _, err := r.Get(second); err != nil {
		t.Errorf("Expected %s to survive deletion of %s: %v", second, first, err)
	}
}

func TestRegistry_DeleteClosesVoiceBeforeRemoval(t *testing.T) {
	r := NewRegistry()
	id := r.Create()
	s, _ := r.Get(id)

	voice := &fakeVoice{}
	var visibleDuringClose bool
	voice.onClose = func() {
		// Delete holds the write lock, so inspect the map directly.
		_, visibleDuringClose = r.sessions[id]
	}
	if err := s.AttachVoice(voice); err != nil {
		t.Fatalf("AttachVoice failed: %v", err)
	}

	if err := r.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if voice.closeCount() != 1 {
		t.Errorf("Expected voice client closed once, got %d", voice.closeCount())
	}
	if !visibleDuringClose {
		t.Error("Expected session to remain registered while voice client closed")
	}
	if _, err := r.Get(id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSession_AttachVoiceTwice(t *testing.T) {
	s := newSession("session_0")

	if err := s.AttachVoice(&fakeVoice{}); err != nil {
		t.Fatalf("first AttachVoice failed: %v", err)
	}
	if err := s.AttachVoice(&fakeVoice{}); !errors.Is(err, domain.ErrVoiceActive) {
		t.Errorf("Expected ErrVoiceActive, got %v", err)
	}
}

func TestSession_AttachAfterRemoval(t *testing.T) {
	tests := []struct {
		name   string
		remove func(r *Registry, id string)
	}{
		{"delete", func(r *Registry, id string) { _ = r.Delete(id) }},
		{"close all", func(r *Registry, _ string) { r.CloseAll() }},
		{"idle sweep", func(r *Registry, _ string) { r.SweepIdle(-time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			id := r.Create()
			s, err := r.Get(id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}

			tt.remove(r, id)

			v := &fakeVoice{}
			if err := s.AttachVoice(v); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("Expected ErrNotFound attaching to removed session, got %v", err)
			}
			if s.Voice() != nil {
				t.Error("Expected no voice client on removed session")
			}
		})
	}
}

func TestSession_DetachStaleVoice(t *testing.T) {
	s := newSession("session_0")
	current := &fakeVoice{}
	stale := &fakeVoice{}

	if err := s.AttachVoice(current); err != nil {
		t.Fatalf("AttachVoice failed: %v", err)
	}
	s.DetachVoice(stale)

	if s.Voice() != current {
		t.Error("Expected stale detach to leave current voice client attached")
	}

	s.DetachVoice(current)
	if s.Voice() != nil {
		t.Error("Expected voice client cleared")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	voices := make([]*fakeVoice, 3)
	for i := range voices {
		s, _ := r.Get(r.Create())
		voices[i] = &fakeVoice{}
		if err := s.AttachVoice(voices[i]); err != nil {
			t.Fatalf("AttachVoice failed: %v", err)
		}
	}

	r.CloseAll()

	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}
	for i, v := range voices {
		if v.closeCount() != 1 {
			t.Errorf("voice %d: expected closed once, got %d", i, v.closeCount())
		}
	}
}

func TestRegistry_SweepIdle(t *testing.T) {
	r := NewRegistry()
	idle := r.Create()
	busy := r.Create()
	fresh := r.Create()

	old := time.Now().Add(-time.Hour)
	for _, id := range []string{idle, busy} {
		s, _ := r.Get(id)
		s.mu.Lock()
		s.lastActive = old
		s.mu.Unlock()
	}
	s, _ := r.Get(busy)
	s.mu.Lock()
	s.voice = &fakeVoice{}
	s.mu.Unlock()

	if n := r.SweepIdle(time.Minute); n != 1 {
		t.Errorf("Expected 1 session swept, got %d", n)
	}
	if _, err := r.Get(idle); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected idle session removed, got %v", err)
	}
	for _, id := range []string{busy, fresh} {
		if _, err := r.Get(id); err != nil {
			t.Errorf("Expected %s kept: %v", id, err)
		}
	}
}

func TestStartIdleSweeper_Disabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry()
	r.Create()
	StartIdleSweeper(ctx, r, 0)

	if r.Len() != 1 {
		t.Errorf("Expected disabled sweeper to leave sessions, got %d", r.Len())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	ids := make(chan string, 1000)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(ids)
		for i := 0; i < 1000; i++ {
			ids <- r.Create()
		}
	}()
	go func() {
		defer wg.Done()
		for id := range ids {
			if err := r.Delete(id); err != nil {
				t.Errorf("Delete %s failed: %v", id, err)
			}
		}
	}()
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}
	if id := r.Create(); id != "session_"+strconv.Itoa(1000) {
		t.Errorf("Expected session_1000, got %s", id)
	}
}
