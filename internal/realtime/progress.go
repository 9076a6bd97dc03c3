package realtime

import (
	"slices"
	"sync"
)

// Progress tracks how far the user is through a recipe during one voice session.
// It is mutated only by the client's reader; snapshots may be taken from any goroutine.
type Progress struct {
	mu        sync.Mutex
	title     string
	phase     string
	step      int
	completed map[int]struct{}
	timers    map[string]int
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	RecipeTitle    string         `json:"recipe_title"`
	CurrentPhase   string         `json:"current_phase"`
	CurrentStep    int            `json:"current_step"`
	CompletedSteps []int          `json:"completed_steps"`
	Timers         map[string]int `json:"timers"`
}

func newProgress() *Progress {
	return &Progress{
		completed: make(map[int]struct{}),
		timers:    make(map[string]int),
	}
}

func (p *Progress) reset(title, phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
	p.phase = phase
	p.step = 0
	p.completed = make(map[int]struct{})
	p.timers = make(map[string]int)
}

// completeStep records step n as done. Completing the same step twice has no further effect.
func (p *Progress) completeStep(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[n] = struct{}{}
	if n > p.step {
		p.step = n
	}
}

// setTimer records a timer; a later request with the same label replaces it.
func (p *Progress) setTimer(label string, seconds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers[label] = seconds
}

// Snapshot returns a copy of the current progress with completed steps in ascending order.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := make([]int, 0, len(p.completed))
	for n := range p.completed {
		steps = append(steps, n)
	}
	slices.Sort(steps)

	timers := make(map[string]int, len(p.timers))
	for k, v := range p.timers {
		timers[k] = v
	}

	return ProgressSnapshot{
		RecipeTitle:    p.title,
		CurrentPhase:   p.phase,
		CurrentStep:    p.step,
		CompletedSteps: steps,
		Timers:         timers,
	}
}
