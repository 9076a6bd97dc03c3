// Package domain contains core domain types for the Recipe Road application.
package domain

import "fmt"

// SearchQuery describes what the user wants to cook.
type SearchQuery struct {
	Description         string   `json:"description" jsonschema:"What the user wants to cook"`
	Ingredients         []string `json:"ingredients" jsonschema:"Available ingredients"`
	DietaryRestrictions []string `json:"dietary_restrictions" jsonschema:"Dietary restrictions or preferences"`
}

// Validate checks the query has the fields a search needs.
func (q *SearchQuery) Validate() error {
	if q.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidArgument)
	}
	return nil
}

// RecipeOption is a single candidate returned by a recipe search.
type RecipeOption struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	PrepTime           string   `json:"prep_time"`
	CookTime           string   `json:"cook_time"`
	Servings           int      `json:"servings"`
	Difficulty         string   `json:"difficulty" jsonschema:"Difficulty level: Easy, Medium or Hard"`
	Ingredients        []string `json:"ingredients"`
	MissingIngredients []string `json:"missing_ingredients" jsonschema:"Ingredients the user does not have"`
	MatchScore         float64  `json:"match_score" jsonschema:"How well this matches the request, from 0 to 1"`
}

// SearchResult is the response to a recipe search.
type SearchResult struct {
	Recipes   []RecipeOption `json:"recipes"`
	SessionID string         `json:"session_id"`
}

// Step is one instruction inside a Phase.
type Step struct {
	StepNumber    int    `json:"step_number"`
	Instruction   string `json:"instruction"`
	EstimatedTime string `json:"estimated_time,omitempty"`
	TimerNeeded   bool   `json:"timer_needed"`
	// TimerDuration is in seconds.
	TimerDuration *int   `json:"timer_duration,omitempty" jsonschema:"Timer duration in seconds"`
	Tips          string `json:"tips,omitempty"`
}

// Phase groups steps into a logical stage such as Preparation or Cooking.
type Phase struct {
	PhaseName   string `json:"phase_name"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
	TotalTime   string `json:"total_time"`
}

// DetailedRecipe is a recipe broken down for voice-guided cooking.
type DetailedRecipe struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Servings    int      `json:"servings"`
	TotalTime   string   `json:"total_time"`
	Ingredients []string `json:"ingredients"`
	Equipment   []string `json:"equipment"`
	Phases      []Phase  `json:"phases"`
}

// StepCount returns the total number of steps across all phases.
func (r *DetailedRecipe) StepCount() int {
	n := 0
	for _, p := range r.Phases {
		n += len(p.Steps)
	}
	return n
}

// FirstPhaseName returns the name of the first phase, or "" if there are none.
func (r *DetailedRecipe) FirstPhaseName() string {
	if len(r.Phases) == 0 {
		return ""
	}
	return r.Phases[0].PhaseName
}

// SelectRequest is the body of a recipe selection.
type SelectRequest struct {
	RecipeIndex    int           `json:"recipe_index"`
	SearchResults  *SearchResult `json:"search_results,omitempty"`
	FullRecipeText string        `json:"full_recipe_text"`
}
