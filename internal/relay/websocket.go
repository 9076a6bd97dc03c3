// Package relay bridges a client websocket and a realtime voice assistant for
// one recipe session.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/metrics"
	"github.com/ashureev/recipe-road/internal/realtime"
	"github.com/ashureev/recipe-road/internal/session"
	"github.com/ashureev/recipe-road/internal/shared"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const (
	clientReadLimit  = 1 << 20
	controlWriteWait = 5 * time.Second
)

// Assistant is the voice client a relay drives.
type Assistant interface {
	Connect(ctx context.Context) error
	Configure(ctx context.Context, recipe *domain.DetailedRecipe) error
	StartConversation() error
	SendAudio(pcm []byte) error
	Events() <-chan realtime.Event
	Close() error
}

// AssistantFactory creates a fresh, unconnected Assistant.
type AssistantFactory func() (Assistant, error)

// SessionStore looks up recipe sessions.
type SessionStore interface {
	Get(id string) (*session.Session, error)
}

// Handler serves the assistant websocket endpoint.
type Handler struct {
	sessions      SessionStore
	newAssistant  AssistantFactory
	settleDelay   time.Duration
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new relay handler.
func NewHandler(sessions SessionStore, newAssistant AssistantFactory, settleDelay time.Duration, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		newAssistant:  newAssistant,
		settleDelay:   settleDelay,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// RegisterRoutes registers the assistant websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assistant/{session_id}", h.ServeHTTP)
}

// controlMessage is a JSON text frame exchanged with the client.
type controlMessage struct {
	Type       string `json:"type"`
	Message    string `json:"message,omitempty"`
	StepNumber int    `json:"step_number,omitempty"`
	Duration   int    `json:"duration,omitempty"`
	Label      string `json:"label,omitempty"`
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	slog.Info("Assistant connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()
	ws.SetReadLimit(clientReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		slog.Warn("Assistant requested for unknown session", "session_id", sessionID)
		h.notifyError(ws, domain.ErrNoRecipeSelected.Error())
		return
	}
	recipe := sess.Recipe()
	if recipe == nil {
		slog.Warn("Assistant requested before recipe selection", "session_id", sessionID)
		h.notifyError(ws, domain.ErrNoRecipeSelected.Error())
		return
	}

	assistant, err := h.newAssistant()
	if err != nil {
		slog.Error("Failed to create assistant", "error", err, "session_id", sessionID)
		metrics.RelayErrorsTotal.WithLabelValues("create").Inc()
		h.notifyError(ws, startupMessage(err))
		return
	}
	if err := sess.AttachVoice(assistant); err != nil {
		_ = assistant.Close()
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("Session ended before assistant attached", "session_id", sessionID)
			h.notifyError(ws, "session not found")
			return
		}
		slog.Warn("Assistant already active", "session_id", sessionID)
		h.notifyError(ws, domain.ErrVoiceActive.Error())
		return
	}
	metrics.VoiceSessionsActive.Inc()
	defer func() {
		if closeErr := assistant.Close(); closeErr != nil {
			slog.Debug("Failed to close assistant", "error", closeErr, "session_id", sessionID)
		}
		sess.DetachVoice(assistant)
		metrics.VoiceSessionsActive.Dec()
	}()

	if err := h.start(ctx, assistant, recipe); err != nil {
		slog.Error("Failed to start assistant", "error", err, "session_id", sessionID)
		metrics.RelayErrorsTotal.WithLabelValues("start").Inc()
		h.notifyError(ws, startupMessage(err))
		return
	}
	slog.Info("Assistant session started", "session_id", sessionID, "recipe", recipe.Title)

	var wg sync.WaitGroup
	wg.Add(2)

	// Assistant -> client.
	go func() {
		defer wg.Done()
		defer cancel()
		h.outputLoop(ctx, ws, assistant, sessionID)
	}()

	// Client -> assistant.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, assistant, sessionID)
	}()

	wg.Wait()
	slog.Info("Assistant session ended", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// start connects and configures the assistant, lets the endpoint settle, then
// opens the conversation.
func (h *Handler) start(ctx context.Context, assistant Assistant, recipe *domain.DetailedRecipe) error {
	if err := assistant.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := assistant.Configure(ctx, recipe); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	if h.settleDelay > 0 {
		select {
		case <-time.After(h.settleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := assistant.StartConversation(); err != nil {
		return fmt.Errorf("start conversation: %w", err)
	}
	return nil
}

func startupMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return "voice assistant is not configured"
	case errors.Is(err, domain.ErrConnection):
		return "could not connect to voice assistant"
	default:
		return "failed to start voice assistant"
	}
}

// outputLoop forwards assistant events to the client until the event stream
// ends or the context is cancelled.
func (h *Handler) outputLoop(ctx context.Context, ws *websocket.Conn, assistant Assistant, sessionID string) {
	defer h.recoverPump(ws, sessionID, "output")
	slog.Debug("Starting output loop", "session_id", sessionID)

	events := assistant.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				slog.Info("Assistant event stream ended", "session_id", sessionID)
				if err := ws.Close(websocket.StatusNormalClosure, "assistant ended"); err != nil {
					slog.Debug("Failed to close websocket", "error", err, "session_id", sessionID)
				}
				return
			}
			if err := h.forward(ctx, ws, ev, sessionID); err != nil {
				if shared.IsDisconnectError(err) || ctx.Err() != nil {
					slog.Debug("Client gone while forwarding", "session_id", sessionID)
				} else {
					slog.Error("WebSocket write error", "error", err, "session_id", sessionID)
					metrics.RelayErrorsTotal.WithLabelValues("output").Inc()
					h.notifyError(ws, "relay error")
				}
				return
			}
		}
	}
}

func (h *Handler) forward(ctx context.Context, ws *websocket.Conn, ev realtime.Event, sessionID string) error {
	switch e := ev.(type) {
	case realtime.AudioChunk:
		metrics.RelayFramesTotal.WithLabelValues("to_client", "audio").Inc()
		return ws.Write(ctx, websocket.MessageBinary, e.Data)
	case realtime.StepCompleted:
		metrics.RelayFramesTotal.WithLabelValues("to_client", "control").Inc()
		return h.writeJSON(ctx, ws, controlMessage{Type: "step_completed", StepNumber: e.StepNumber})
	case realtime.TimerRequested:
		metrics.RelayFramesTotal.WithLabelValues("to_client", "control").Inc()
		return h.writeJSON(ctx, ws, controlMessage{Type: "timer_requested", Duration: e.Duration, Label: e.Label})
	case realtime.ErrorEvent:
		slog.Warn("Assistant reported an error", "message", e.Message, "session_id", sessionID)
	case realtime.SessionCreated:
		slog.Debug("Assistant session created", "realtime_session", e.ID, "session_id", sessionID)
	case realtime.SessionUpdated:
		slog.Debug("Assistant session updated", "session_id", sessionID)
	case realtime.Informational:
		slog.Debug("Assistant event", "type", e.Type, "session_id", sessionID)
	default:
		slog.Warn("Unhandled assistant event", "type", fmt.Sprintf("%T", ev), "session_id", sessionID)
	}
	return nil
}

// inputLoop forwards client audio to the assistant and answers control messages.
func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, assistant Assistant, sessionID string) {
	defer h.recoverPump(ws, sessionID, "input")
	slog.Debug("Starting input loop", "session_id", sessionID)

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if shared.IsDisconnectError(err) || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Error("WebSocket read error", "error", err, "session_id", sessionID)
				metrics.RelayErrorsTotal.WithLabelValues("input").Inc()
				h.notifyError(ws, "relay error")
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if err := assistant.SendAudio(data); err != nil {
				if errors.Is(err, realtime.ErrClosed) {
					slog.Info("Assistant closed, dropping client audio", "session_id", sessionID)
				} else {
					slog.Error("Failed to forward audio", "error", err, "session_id", sessionID)
					metrics.RelayErrorsTotal.WithLabelValues("input").Inc()
					h.notifyError(ws, "failed to forward audio")
				}
				return
			}
			metrics.RelayFramesTotal.WithLabelValues("to_assistant", "audio").Inc()
		case websocket.MessageText:
			h.handleControl(ctx, ws, data, sessionID)
		}
	}
}

func (h *Handler) handleControl(ctx context.Context, ws *websocket.Conn, data []byte, sessionID string) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("Ignoring malformed control message", "error", err, "session_id", sessionID)
		return
	}
	switch msg.Type {
	case "ping":
		if err := h.writeJSON(ctx, ws, controlMessage{Type: "pong"}); err != nil {
			slog.Debug("Failed to send pong", "error", err)
		}
	default:
		slog.Debug("Ignoring control message", "type", msg.Type, "session_id", sessionID)
	}
}

// recoverPump turns a panic in a pump into an error notification; the caller's
// deferred cancel then tears the session down.
func (h *Handler) recoverPump(ws *websocket.Conn, sessionID, pump string) {
	if r := recover(); r != nil {
		slog.Error("Relay pump panicked", "pump", pump, "panic", r, "session_id", sessionID, "stack", string(debug.Stack()))
		metrics.RelayErrorsTotal.WithLabelValues(pump).Inc()
		h.notifyError(ws, "internal error")
	}
}

// notifyError sends a best-effort error control message.
func (h *Handler) notifyError(ws *websocket.Conn, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), controlWriteWait)
	defer cancel()
	if err := h.writeJSON(ctx, ws, controlMessage{Type: "error", Message: message}); err != nil {
		slog.Debug("Failed to send error message", "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
