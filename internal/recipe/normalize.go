package recipe

import (
	"fmt"
	"math"
	"sort"

	"github.com/ashureev/recipe-road/internal/domain"
)

// SearchResultSize is the number of options every search returns.
const SearchResultSize = 3

// normalizeOptions clamps match scores to [0, 1], orders the options by
// descending score and keeps exactly SearchResultSize of them.
func normalizeOptions(opts []domain.RecipeOption) ([]domain.RecipeOption, error) {
	if len(opts) < SearchResultSize {
		return nil, fmt.Errorf("%w: model returned %d recipes, want %d", domain.ErrUpstream, len(opts), SearchResultSize)
	}

	out := make([]domain.RecipeOption, len(opts))
	copy(out, opts)
	for i := range out {
		out[i].MatchScore = clampScore(out[i].MatchScore)
		if out[i].Ingredients == nil {
			out[i].Ingredients = []string{}
		}
		if out[i].MissingIngredients == nil {
			out[i].MissingIngredients = []string{}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out[:SearchResultSize], nil
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

// normalizeRecipe checks the recipe has at least one phase. A phase whose step
// numbers are not strictly increasing positive integers is renumbered from 1.
func normalizeRecipe(r *domain.DetailedRecipe) error {
	if len(r.Phases) == 0 {
		return fmt.Errorf("%w: model returned a recipe with no phases", domain.ErrUpstream)
	}
	for i := range r.Phases {
		steps := r.Phases[i].Steps
		if stepsOrdered(steps) {
			continue
		}
		for j := range steps {
			steps[j].StepNumber = j + 1
		}
	}
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Equipment == nil {
		r.Equipment = []string{}
	}
	return nil
}

func stepsOrdered(steps []domain.Step) bool {
	prev := 0
	for _, s := range steps {
		if s.StepNumber <= prev {
			return false
		}
		prev = s.StepNumber
	}
	return true
}
