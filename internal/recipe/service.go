// Package recipe searches for recipes and expands a chosen recipe into
// voice-friendly phases and steps using a language model.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/metrics"
	"github.com/ashureev/recipe-road/internal/shared"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("recipe model temporarily unavailable")

const (
	opSearch = "search"
	opDetail = "detail"
)

type searchOutput struct {
	Recipes []domain.RecipeOption `json:"recipes"`
}

// Service runs recipe search and detailing through a Generator, guarded by a
// circuit breaker and a per-call timeout.
type Service struct {
	gen     Generator
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration

	searchSchema *jsonschema.Schema
	detailSchema *jsonschema.Schema
}

// NewService creates a Service. A nil gen yields a service whose calls fail
// with domain.ErrConfiguration, so the server can start without a credential.
func NewService(gen Generator, timeout time.Duration) (*Service, error) {
	searchSchema, err := jsonschema.For[searchOutput](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("search schema: %w", err)
	}
	detailSchema, err := jsonschema.For[domain.DetailedRecipe](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("detail schema: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "recipe-model",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Service{
		gen:          gen,
		cb:           cb,
		timeout:      timeout,
		searchSchema: searchSchema,
		detailSchema: detailSchema,
	}, nil
}

// Search returns exactly three recipe options ordered by descending match score.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RecipeOption, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var out searchOutput
	err := s.call(ctx, opSearch, Request{
		Name:        "recipe_search_result",
		Description: "Three recipe options matching the request",
		System:      searchSystemPrompt,
		Prompt:      searchPrompt(q),
		Schema:      s.searchSchema,
	}, &out)
	if err != nil {
		return nil, err
	}
	return normalizeOptions(out.Recipes)
}

// Detail expands a chosen option into phases and numbered steps.
func (s *Service) Detail(ctx context.Context, opt domain.RecipeOption, fullText string) (*domain.DetailedRecipe, error) {
	var out domain.DetailedRecipe
	err := s.call(ctx, opDetail, Request{
		Name:        "detailed_recipe",
		Description: "A recipe broken into phases and steps for voice guidance",
		System:      detailSystemPrompt,
		Prompt:      detailPrompt(opt, fullText),
		Schema:      s.detailSchema,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := normalizeRecipe(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) call(ctx context.Context, op string, req Request, out any) error {
	if s.gen == nil {
		return fmt.Errorf("%w: recipe model API key is not set", domain.ErrConfiguration)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.cb.Execute(func() (interface{}, error) {
		raw, err := s.gen.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrUpstream, op, err)
		}
		if err := shared.UnmarshalJSON([]byte(stripCodeFence(raw)), out); err != nil {
			return nil, fmt.Errorf("%w: decode %s output: %w", domain.ErrUpstream, op, err)
		}
		return nil, nil
	})
	metrics.RecipeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecipeRequestsTotal.WithLabelValues(op, "rejected").Inc()
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		metrics.RecipeRequestsTotal.WithLabelValues(op, "error").Inc()
		slog.Error("Recipe model call failed", "operation", op, "error", err)
		return err
	}
	metrics.RecipeRequestsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// add even when asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
