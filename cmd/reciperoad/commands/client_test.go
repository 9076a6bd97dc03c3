package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/recipe-road/internal/domain"
)

func TestClient_SearchAndSelect(t *testing.T) {
	var gotSelect domain.SelectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/search":
			var q domain.SearchQuery
			_ = json.NewDecoder(r.Body).Decode(&q)
			_ = json.NewEncoder(w).Encode(domain.SearchResult{
				SessionID: "session_0",
				Recipes:   []domain.RecipeOption{{Title: q.Description + " pie", MatchScore: 0.8}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/select/session_0":
			_ = json.NewDecoder(r.Body).Decode(&gotSelect)
			_ = json.NewEncoder(w).Encode(domain.DetailedRecipe{Title: "Apple pie"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"session \"x\": not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", nil)
	ctx := context.Background()

	res, err := c.Search(ctx, domain.SearchQuery{Description: "apple"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res.SessionID != "session_0" || res.Recipes[0].Title != "apple pie" {
		t.Errorf("Unexpected search result: %+v", res)
	}

	recipe, err := c.Select(ctx, "session_0", domain.SelectRequest{RecipeIndex: 2, FullRecipeText: "Bake."})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if recipe.Title != "Apple pie" || gotSelect.RecipeIndex != 2 || gotSelect.FullRecipeText != "Bake." {
		t.Errorf("Unexpected select round trip: %+v %+v", recipe, gotSelect)
	}

	err = c.End(ctx, "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || !strings.Contains(apiErr.Message, "not found") {
		t.Errorf("Expected 404 APIError, got %v", err)
	}
}

func TestClient_AssistantURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/assistant/session_1"},
		{"https://cook.example/", "wss://cook.example/assistant/session_1"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.base, nil).AssistantURL("session_1"); got != tt.want {
			t.Errorf("AssistantURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestRenderRecipe(t *testing.T) {
	timer := 90
	out := renderRecipe(&domain.DetailedRecipe{
		Title:    "Pancakes",
		Servings: 2,
		Phases: []domain.Phase{{
			PhaseName: "Cooking",
			Steps: []domain.Step{
				{StepNumber: 1, Instruction: "Pour batter", TimerNeeded: true, TimerDuration: &timer},
				{StepNumber: 2, Instruction: "Flip", Tips: "wait for bubbles"},
			},
		}},
	})

	for _, want := range []string{"Pancakes", "1. Pour batter", "timer 90s", "2. Flip", "wait for bubbles"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestRenderOptions(t *testing.T) {
	out := renderOptions(&domain.SearchResult{
		SessionID: "session_3",
		Recipes: []domain.RecipeOption{
			{Title: "Fried Rice", MatchScore: 0.95, MissingIngredients: []string{"soy sauce"}},
		},
	})
	for _, want := range []string{"session_3", "[0] Fried Rice", "match 95%", "soy sauce"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}
