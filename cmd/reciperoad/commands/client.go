package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client calls the Recipe Road HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the API at base. A nil hc uses a client with
// a timeout long enough for recipe detailing.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 3 * time.Minute}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// Search runs a recipe search.
func (c *Client) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	var out domain.SearchResult
	if err := c.do(ctx, http.MethodPost, "/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Select details a recipe from the session's search results.
func (c *Client) Select(ctx context.Context, sessionID string, req domain.SelectRequest) (*domain.DetailedRecipe, error) {
	var out domain.DetailedRecipe
	if err := c.do(ctx, http.MethodPost, "/select/"+url.PathEscape(sessionID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// End deletes a session.
func (c *Client) End(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

// AssistantURL returns the websocket address of the session's voice assistant.
func (c *Client) AssistantURL(sessionID string) string {
	u := c.base
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/assistant/" + url.PathEscape(sessionID)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
