package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/realtime"
	"github.com/ashureev/recipe-road/internal/session"
	"github.com/go-chi/chi/v5"
)

// RecipeService searches for recipes and details a chosen one.
type RecipeService interface {
	Search(ctx context.Context, q domain.SearchQuery) ([]domain.RecipeOption, error)
	Detail(ctx context.Context, opt domain.RecipeOption, fullText string) (*domain.DetailedRecipe, error)
}

// progressReporter is implemented by voice clients that track cooking progress.
type progressReporter interface {
	Progress() realtime.ProgressSnapshot
}

// RecipeHandler handles search, selection and session endpoints.
type RecipeHandler struct {
	recipes  RecipeService
	sessions *session.Registry
	maxBody  int64
}

// NewRecipeHandler creates a new recipe handler.
func NewRecipeHandler(recipes RecipeService, sessions *session.Registry, maxBody int64) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, sessions: sessions, maxBody: maxBody}
}

// RegisterRoutes registers recipe and session routes. limit wraps the routes
// that call the recipe model; it may be nil.
func (h *RecipeHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/search", h.Search)
		r.Post("/select/{session_id}", h.Select)
	})
	r.Delete("/session/{session_id}", h.EndSession)
	r.Get("/session/{session_id}/progress", h.Progress)
}

// Search finds three recipes and opens a new session holding them.
func (h *RecipeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var q domain.SearchQuery
	if err := decodeJSON(w, r, h.maxBody, &q); err != nil {
		writeError(w, err)
		return
	}
	if err := q.Validate(); err != nil {
		writeError(w, err)
		return
	}

	recipes, err := h.recipes.Search(r.Context(), q)
	if err != nil {
		slog.Error("Recipe search failed", "error", err)
		writeError(w, err)
		return
	}

	id := h.sessions.Create()
	result := &domain.SearchResult{Recipes: recipes, SessionID: id}
	sess, err := h.sessions.Get(id)
	if err != nil {
		slog.Error("Session vanished after creation", "error", err, "session_id", id)
		writeError(w, err)
		return
	}
	sess.SetSearchResults(result)

	slog.Info("Recipe search complete", "session_id", id, "results", len(recipes))
	JSON(w, http.StatusOK, result)
}

// Select details the chosen recipe and stores it on the session.
func (h *RecipeHandler) Select(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req domain.SelectRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeError(w, err)
		return
	}

	results := req.SearchResults
	if results == nil || len(results.Recipes) == 0 {
		results = sess.SearchResults()
	}
	if results == nil || req.RecipeIndex < 0 || req.RecipeIndex >= len(results.Recipes) {
		writeError(w, fmt.Errorf("%w: recipe index %d out of range", domain.ErrInvalidArgument, req.RecipeIndex))
		return
	}
	chosen := results.Recipes[req.RecipeIndex]

	detailed, err := h.recipes.Detail(r.Context(), chosen, req.FullRecipeText)
	if err != nil {
		slog.Error("Recipe detail failed", "error", err, "session_id", sessionID)
		writeError(w, err)
		return
	}
	sess.SelectRecipe(detailed)

	slog.Info("Recipe selected", "session_id", sessionID, "title", detailed.Title, "steps", detailed.StepCount())
	JSON(w, http.StatusOK, detailed)
}

// EndSession closes any live voice connection and removes the session.
func (h *RecipeHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if err := h.sessions.Delete(sessionID); err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Session ended"})
}

// Progress returns the cooking progress of the session's live voice client.
func (h *RecipeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	reporter, ok := sess.Voice().(progressReporter)
	if !ok {
		Error(w, http.StatusConflict, "no active voice session")
		return
	}
	JSON(w, http.StatusOK, reporter.Progress())
}
