// Package realtime implements a client for an OpenAI Realtime style
// conversational voice endpoint, specialised for guiding a user through a recipe.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/ashureev/recipe-road/internal/metrics"
	"github.com/ashureev/recipe-road/internal/shared"
	"github.com/gorilla/websocket"
)

const (
	DefaultURL         = "wss://api.openai.com/v1/realtime"
	DefaultModel       = "gpt-4o-realtime-preview-2024-12-17"
	DefaultVoice       = "alloy"
	DefaultTemperature = 0.8

	defaultHandshakeTimeout = 5 * time.Second
	defaultQueueSize        = 256
	writeWait               = 10 * time.Second
)

var (
	// ErrNotConnected is returned when sending before Connect has succeeded.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrNotReady is returned when starting a conversation before Configure has succeeded.
	ErrNotReady = errors.New("realtime: session not configured")
	// ErrClosed is returned when using a client after Close.
	ErrClosed = errors.New("realtime: client closed")
)

// Config holds the settings for a realtime Client.
type Config struct {
	URL              string
	Model            string
	APIKey           string
	Voice            string
	Temperature      float64
	HandshakeTimeout time.Duration
	QueueSize        int
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
}

// Client is one conversation with the realtime endpoint.
//
// A single background reader owns the upstream socket's read side and is the
// only producer on Events. Writes are serialized by mu.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu            sync.Mutex
	conn          *websocket.Conn
	readerStarted bool

	lifecycle  atomic.Int32
	state      atomic.Int32
	configured atomic.Bool
	sessionID  atomic.Pointer[string]
	progress   *Progress

	events      chan Event
	created     chan struct{}
	createdOnce sync.Once
	updated     chan struct{}
	updatedOnce sync.Once
	readerDone  chan struct{}
	closeCh     chan struct{}
	closeOnce   sync.Once
}

// NewClient creates a client. It fails with domain.ErrConfiguration when no
// credential is configured; nothing is dialed until Connect.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: realtime API key is not set", domain.ErrConfiguration)
	}
	cfg.applyDefaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: realtime url: %w", domain.ErrConfiguration, err)
	}

	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		progress:   newProgress(),
		events:     make(chan Event, cfg.QueueSize),
		created:    make(chan struct{}),
		updated:    make(chan struct{}),
		readerDone: make(chan struct{}),
		closeCh:    make(chan struct{}),
	}, nil
}

// Connect dials the endpoint, starts the background reader and waits until the
// endpoint reports session.created. On failure the client is closed.
func (c *Client) Connect(ctx context.Context) error {
	if !c.lifecycle.CompareAndSwap(int32(lifecycleIdle), int32(lifecycleConnecting)) {
		if c.isClosed() {
			return ErrClosed
		}
		return errors.New("realtime: already connected")
	}

	endpoint, err := c.endpoint()
	if err != nil {
		_ = c.Close()
		return err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("%w: dial returned HTTP %d: %w", domain.ErrConnection, resp.StatusCode, err)
		} else {
			err = fmt.Errorf("%w: dial: %w", domain.ErrConnection, err)
		}
		_ = c.Close()
		return err
	}

	c.mu.Lock()
	select {
	case <-c.closeCh:
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	default:
	}
	c.conn = conn
	c.readerStarted = true
	c.mu.Unlock()

	go c.readLoop(conn)

	if err := c.waitFor(ctx, c.created, eventSessionCreated); err != nil {
		_ = c.Close()
		return err
	}
	slog.Info("Realtime session created", "realtime_session", c.SessionID())
	return nil
}

// Configure sends the session configuration for recipe and waits until the
// endpoint acknowledges it with session.updated.
func (c *Client) Configure(ctx context.Context, recipe *domain.DetailedRecipe) error {
	switch lifecycle(c.lifecycle.Load()) {
	case lifecycleIdle:
		return ErrNotConnected
	case lifecycleClosed:
		return ErrClosed
	}
	if recipe == nil {
		return fmt.Errorf("%w: recipe is nil", domain.ErrInvalidArgument)
	}
	if !c.configured.CompareAndSwap(false, true) {
		return domain.ErrAlreadyConfigured
	}

	tools, err := cookingTools()
	if err != nil {
		return err
	}
	text, err := instructions(recipe)
	if err != nil {
		return err
	}

	c.progress.reset(recipe.Title, recipe.FirstPhaseName())

	cfg := sessionConfig{
		Modalities:              []string{"text", "audio"},
		Instructions:            text,
		Voice:                   c.cfg.Voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		Temperature:             c.cfg.Temperature,
		InputAudioTranscription: &transcriptionConfig{Model: "whisper-1"},
		TurnDetection:           &turnDetection{Type: "server_vad"},
		Tools:                   tools,
	}
	if err := c.send(map[string]any{
		"event_id": newEventID(),
		"type":     eventSessionUpdate,
		"session":  cfg,
	}); err != nil {
		return err
	}

	if err := c.waitFor(ctx, c.updated, eventSessionUpdated); err != nil {
		return err
	}
	c.lifecycle.CompareAndSwap(int32(lifecycleConnecting), int32(lifecycleReady))
	slog.Info("Realtime session configured", "realtime_session", c.SessionID(), "recipe", recipe.Title)
	return nil
}

// StartConversation sends the opening user turn and asks the assistant to respond.
func (c *Client) StartConversation() error {
	switch lifecycle(c.lifecycle.Load()) {
	case lifecycleReady:
	case lifecycleClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}

	if err := c.send(map[string]any{
		"event_id": newEventID(),
		"type":     eventConversationItemCreate,
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": greeting},
			},
		},
	}); err != nil {
		return err
	}
	return c.createResponse()
}

// SendAudio forwards a raw PCM frame to the endpoint's input buffer.
func (c *Client) SendAudio(pcm []byte) error {
	switch lifecycle(c.lifecycle.Load()) {
	case lifecycleIdle:
		return ErrNotConnected
	case lifecycleClosed:
		return ErrClosed
	}
	return c.send(map[string]any{
		"event_id": newEventID(),
		"type":     eventInputAudioBufferAppend,
		"audio":    base64.StdEncoding.EncodeToString(pcm),
	})
}

// Events returns the decoded inbound events in arrival order. The channel is
// closed when the upstream connection ends or the client is closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// HandleInbound decodes one raw message from the endpoint, updating the
// conversation state and recipe progress as a side effect.
func (c *Client) HandleInbound(raw []byte) Event {
	ev, _ := c.decode(raw)
	return ev
}

// Progress returns a snapshot of the recipe progress.
func (c *Client) Progress() ProgressSnapshot {
	return c.progress.Snapshot()
}

// State returns the current conversation state.
func (c *Client) State() ConversationState {
	return ConversationState(c.state.Load())
}

// SessionID returns the endpoint's session identifier, or "" before session.created.
func (c *Client) SessionID() string {
	if id := c.sessionID.Load(); id != nil {
		return *id
	}
	return ""
}

// Close shuts the connection down. It is safe to call more than once and before Connect.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.lifecycle.Store(int32(lifecycleClosed))
		close(c.closeCh)

		c.mu.Lock()
		conn := c.conn
		started := c.readerStarted
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(time.Second))
		}
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
		if !started {
			close(c.events)
		}
		slog.Debug("Realtime client closed", "realtime_session", c.SessionID())
	})
	return err
}

func (c *Client) isClosed() bool {
	return lifecycle(c.lifecycle.Load()) == lifecycleClosed
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("%w: realtime url: %w", domain.ErrConfiguration, err)
	}
	q := u.Query()
	if q.Get("model") == "" {
		q.Set("model", c.cfg.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// waitFor blocks until signal is closed, the reader exits, or the handshake
// timeout elapses.
func (c *Client) waitFor(ctx context.Context, signal <-chan struct{}, what string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	select {
	case <-signal:
		return nil
	case <-c.readerDone:
		return fmt.Errorf("%w: connection closed before %s", domain.ErrConnection, what)
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s: %w", domain.ErrConnection, what, ctx.Err())
	}
}

func (c *Client) createResponse() error {
	return c.send(map[string]any{
		"event_id": newEventID(),
		"type":     eventResponseCreate,
	})
}

// send writes a JSON event to the endpoint.
func (c *Client) send(event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %v: %w", event["type"], err)
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) && event["type"] != eventInputAudioBufferAppend {
		str := string(data)
		if len(str) > 500 {
			str = str[:500] + "..."
		}
		slog.Debug("Sending realtime event", "content", str)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %v: %w", event["type"], err)
	}
	return nil
}

// readLoop reads events from the connection until it fails or the client is closed.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.readerDone)
	defer close(c.events)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Info("Realtime endpoint closed the connection", "realtime_session", c.SessionID())
				} else {
					slog.Warn("Realtime read error", "error", err, "realtime_session", c.SessionID())
				}
			}
			return
		}

		ev, call := c.decode(message)
		if call != nil {
			c.acknowledge(call)
		}

		select {
		case c.events <- ev:
		case <-c.closeCh:
			return
		}
	}
}

// acknowledge returns a tool call's result to the endpoint and asks it to
// continue, so the assistant keeps talking after the call.
func (c *Client) acknowledge(call *toolCall) {
	if call.callID == "" {
		return
	}
	output, err := json.Marshal(call.output)
	if err != nil {
		slog.Warn("Failed to marshal tool output", "tool", call.name, "error", err)
		return
	}
	if err := c.send(map[string]any{
		"event_id": newEventID(),
		"type":     eventConversationItemCreate,
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": call.callID,
			"output":  string(output),
		},
	}); err != nil {
		slog.Debug("Failed to acknowledge tool call", "tool", call.name, "error", err)
		return
	}
	if err := c.createResponse(); err != nil {
		slog.Debug("Failed to request response after tool call", "tool", call.name, "error", err)
	}
}

// decode maps one inbound message to an Event. Malformed input never fails the
// reader; it becomes an ErrorEvent.
func (c *Client) decode(raw []byte) (Event, *toolCall) {
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		str := string(raw)
		if len(str) > 1000 {
			str = str[:1000] + "..."
		}
		slog.Debug("Received realtime event", "len", len(raw), "content", str)
	}

	var msg serverEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("Malformed realtime event", "error", err)
		return ErrorEvent{Message: "malformed event"}, nil
	}
	metrics.RealtimeEventsTotal.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case eventError:
		message := "unknown error"
		if msg.Error != nil && msg.Error.Message != "" {
			message = msg.Error.Message
		}
		slog.Error("Realtime endpoint reported an error", "message", message, "realtime_session", c.SessionID())
		return ErrorEvent{Message: message}, nil

	case eventSessionCreated:
		var id string
		if msg.Session != nil {
			id = msg.Session.ID
		}
		c.sessionID.Store(&id)
		c.createdOnce.Do(func() { close(c.created) })
		return SessionCreated{ID: id}, nil

	case eventSessionUpdated:
		c.updatedOnce.Do(func() { close(c.updated) })
		return SessionUpdated{}, nil

	case eventConversationItemCreated:
		if msg.Item != nil && msg.Item.Role == "assistant" {
			c.state.Store(int32(StateSpeaking))
		}

	case eventResponseCreated:
		c.state.Store(int32(StateProcessing))

	case eventResponseDone:
		c.state.Store(int32(StateListening))

	case eventResponseAudioDelta:
		if msg.Delta == "" {
			break
		}
		data, err := base64.StdEncoding.DecodeString(msg.Delta)
		if err != nil {
			slog.Warn("Invalid audio data", "error", err, "realtime_session", c.SessionID())
			return ErrorEvent{Message: "invalid audio data"}, nil
		}
		return AudioChunk{Data: data}, nil

	case eventFunctionCallArgumentsDone:
		if ev, call, ok := c.decodeToolCall(&msg); ok {
			return ev, call
		}
	}

	return Informational{Type: msg.Type, Raw: json.RawMessage(raw)}, nil
}

// decodeToolCall handles a completed function call. ok is false for calls
// that are not cooking tools.
func (c *Client) decodeToolCall(msg *serverEvent) (Event, *toolCall, bool) {
	args := msg.Arguments
	if args == "" {
		args = "{}"
	}

	switch msg.Name {
	case toolMarkStepComplete:
		var in markStepCompleteArgs
		if err := shared.UnmarshalJSON([]byte(args), &in); err != nil || in.StepNumber <= 0 {
			slog.Warn("Invalid tool arguments", "tool", msg.Name, "arguments", msg.Arguments, "error", err)
			return ErrorEvent{Message: "invalid arguments for " + toolMarkStepComplete}, nil, true
		}
		c.progress.completeStep(in.StepNumber)
		slog.Info("Step completed", "step_number", in.StepNumber, "realtime_session", c.SessionID())
		return StepCompleted{StepNumber: in.StepNumber}, &toolCall{
			callID: msg.CallID,
			name:   msg.Name,
			output: map[string]any{"success": true, "step_number": in.StepNumber},
		}, true

	case toolSetTimer:
		var in setTimerArgs
		if err := shared.UnmarshalJSON([]byte(args), &in); err != nil || in.DurationSeconds <= 0 {
			slog.Warn("Invalid tool arguments", "tool", msg.Name, "arguments", msg.Arguments, "error", err)
			return ErrorEvent{Message: "invalid arguments for " + toolSetTimer}, nil, true
		}
		c.progress.setTimer(in.Label, in.DurationSeconds)
		slog.Info("Timer requested", "duration_seconds", in.DurationSeconds, "label", in.Label, "realtime_session", c.SessionID())
		return TimerRequested{Duration: in.DurationSeconds, Label: in.Label}, &toolCall{
			callID: msg.CallID,
			name:   msg.Name,
			output: map[string]any{"success": true, "label": in.Label, "duration_seconds": in.DurationSeconds},
		}, true
	}
	return nil, nil, false
}
