package recipe

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
)

type fakeGenerator struct {
	mu       sync.Mutex
	output   string
	err      error
	requests []Request
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.output, f.err
}

func (f *fakeGenerator) lastRequest() Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestService(t *testing.T, gen Generator) *Service {
	t.Helper()
	svc, err := NewService(gen, time.Second)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

const fourOptions = `{"recipes": [
	{"title": "Okay Omelette", "match_score": 0.4},
	{"title": "Perfect Pasta", "match_score": 1.7},
	{"title": "Bad Bake", "match_score": -0.2},
	{"title": "Good Gnocchi", "match_score": 0.8}
]}`

func TestSearch_SortsClampsAndTruncates(t *testing.T) {
	gen := &fakeGenerator{output: fourOptions}
	svc := newTestService(t, gen)

	got, err := svc.Search(context.Background(), domain.SearchQuery{
		Description:         "quick dinner",
		Ingredients:         []string{"eggs", "flour"},
		DietaryRestrictions: []string{"vegetarian"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(got) != SearchResultSize {
		t.Fatalf("Expected %d results, got %d", SearchResultSize, len(got))
	}
	wantTitles := []string{"Perfect Pasta", "Good Gnocchi", "Okay Omelette"}
	for i, want := range wantTitles {
		if got[i].Title != want {
			t.Errorf("result %d: expected %s, got %s", i, want, got[i].Title)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].MatchScore < got[i].MatchScore {
			t.Errorf("Results not sorted descending: %v", got)
		}
	}
	for _, r := range got {
		if r.MatchScore < 0 || r.MatchScore > 1 {
			t.Errorf("Score out of range: %v", r.MatchScore)
		}
	}

	req := gen.lastRequest()
	if !strings.Contains(req.Prompt, "eggs, flour") || !strings.Contains(req.Prompt, "vegetarian") {
		t.Errorf("Prompt missing query details: %s", req.Prompt)
	}
	if req.Schema == nil {
		t.Error("Expected response schema")
	}
}

func TestSearch_TooFewResults(t *testing.T) {
	gen := &fakeGenerator{output: `{"recipes": [{"title": "Only One", "match_score": 0.9}]}`}
	svc := newTestService(t, gen)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Description: "soup"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}
}

func TestSearch_RequiresDescription(t *testing.T) {
	gen := &fakeGenerator{output: fourOptions}
	svc := newTestService(t, gen)

	_, err := svc.Search(context.Background(), domain.SearchQuery{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
	if len(gen.requests) != 0 {
		t.Error("Expected no model call for invalid query")
	}
}

func TestSearch_RepairsFencedJSON(t *testing.T) {
	gen := &fakeGenerator{output: "```json\n" + `{"recipes": [
		{"title": "A", "match_score": 0.1},
		{"title": "B", "match_score": 0.3},
		{"title": "C", "match_score": 0.2},
	]}` + "\n```"}
	svc := newTestService(t, gen)

	got, err := svc.Search(context.Background(), domain.SearchQuery{Description: "anything"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got[0].Title != "B" {
		t.Errorf("Expected B first, got %s", got[0].Title)
	}
}

func TestSearch_NotConfigured(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Description: "soup"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
}

func TestSearch_BreakerOpensAfterFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model down")}
	svc := newTestService(t, gen)
	q := domain.SearchQuery{Description: "soup"}

	for i := 0; i < 3; i++ {
		if _, err := svc.Search(context.Background(), q); !errors.Is(err, domain.ErrUpstream) {
			t.Fatalf("call %d: expected ErrUpstream, got %v", i, err)
		}
	}

	_, err := svc.Search(context.Background(), q)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable once breaker is open, got %v", err)
	}
	if len(gen.requests) != 3 {
		t.Errorf("Expected 3 model calls, got %d", len(gen.requests))
	}
}

func TestDetail_RenumbersSteps(t *testing.T) {
	gen := &fakeGenerator{output: `{
		"title": "Pancakes",
		"servings": 2,
		"phases": [
			{"phase_name": "Preparation", "steps": [
				{"step_number": 1, "instruction": "Whisk"},
				{"step_number": 1, "instruction": "Rest"},
				{"step_number": 0, "instruction": "Heat pan"}
			]},
			{"phase_name": "Cooking", "steps": [
				{"step_number": 2, "instruction": "Pour", "timer_needed": true, "timer_duration": 90},
				{"step_number": 5, "instruction": "Flip"}
			]}
		]
	}`}
	svc := newTestService(t, gen)

	got, err := svc.Detail(context.Background(), domain.RecipeOption{Title: "Pancakes", Ingredients: []string{"flour"}}, "Mix and fry.")
	if err != nil {
		t.Fatalf("Detail failed: %v", err)
	}

	if len(got.Phases) == 0 {
		t.Fatal("Expected phases")
	}
	for _, p := range got.Phases {
		for i := 1; i < len(p.Steps); i++ {
			if p.Steps[i].StepNumber <= p.Steps[i-1].StepNumber {
				t.Errorf("phase %s: steps not strictly increasing: %+v", p.PhaseName, p.Steps)
			}
		}
	}
	if got.Phases[0].Steps[2].StepNumber != 3 {
		t.Errorf("Expected renumbered step 3, got %d", got.Phases[0].Steps[2].StepNumber)
	}
	if got.Phases[1].Steps[1].StepNumber != 5 {
		t.Errorf("Expected ordered phase kept as-is, got %d", got.Phases[1].Steps[1].StepNumber)
	}
	if d := got.Phases[1].Steps[0].TimerDuration; d == nil || *d != 90 {
		t.Errorf("Expected 90s timer, got %v", d)
	}
	if !strings.Contains(gen.lastRequest().Prompt, "Mix and fry.") {
		t.Error("Expected full recipe text in prompt")
	}
}

func TestDetail_NoPhases(t *testing.T) {
	gen := &fakeGenerator{output: `{"title": "Air", "phases": []}`}
	svc := newTestService(t, gen)

	_, err := svc.Detail(context.Background(), domain.RecipeOption{Title: "Air"}, "")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}
}

func TestStrictSchema(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	original := svc.detailSchema.Properties["phases"].Items.Properties["steps"].Items
	if slices.Contains(original.Required, "tips") {
		t.Fatal("Expected tips to be optional in the generated schema")
	}

	s := strictSchema(svc.detailSchema)
	step := s.Properties["phases"].Items.Properties["steps"].Items

	if step.AdditionalProperties == nil {
		t.Error("Expected additionalProperties to be disallowed")
	}
	if len(step.Required) != len(step.Properties) {
		t.Errorf("Expected all %d properties required, got %v", len(step.Properties), step.Required)
	}
	if !slices.Contains(step.Properties["tips"].Types, "null") {
		t.Errorf("Expected optional tips to be nullable, got %v", step.Properties["tips"].Types)
	}
	if slices.Contains(original.Required, "tips") {
		t.Error("Expected source schema left unchanged")
	}
}
