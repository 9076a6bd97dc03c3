package realtime

import "encoding/json"

// Event is a decoded message from the realtime endpoint.
// The set of implementations is closed: SessionCreated, SessionUpdated,
// AudioChunk, StepCompleted, TimerRequested, Informational and ErrorEvent.
type Event interface {
	isEvent()
}

// SessionCreated reports that the endpoint opened a conversation session.
type SessionCreated struct {
	ID string
}

// SessionUpdated acknowledges a session.update.
type SessionUpdated struct{}

// AudioChunk carries decoded PCM audio produced by the assistant.
type AudioChunk struct {
	Data []byte
}

// StepCompleted reports that the assistant marked a recipe step as done.
type StepCompleted struct {
	StepNumber int
}

// TimerRequested reports that the assistant asked for a cooking timer.
type TimerRequested struct {
	Duration int // seconds
	Label    string
}

// Informational is any event that carries no action for the relay.
type Informational struct {
	Type string
	Raw  json.RawMessage
}

// ErrorEvent reports an error sent by the endpoint or a message that could not be decoded.
type ErrorEvent struct {
	Message string
}

func (SessionCreated) isEvent() {}
func (SessionUpdated) isEvent() {}
func (AudioChunk) isEvent()     {}
func (StepCompleted) isEvent()  {}
func (TimerRequested) isEvent() {}
func (Informational) isEvent()  {}
func (ErrorEvent) isEvent()     {}

// ConversationState is the assistant's turn-taking state as observed from inbound events.
type ConversationState int32

const (
	StateIdle ConversationState = iota
	StateListening
	StateSpeaking
	StateProcessing
)

func (s ConversationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

type lifecycle int32

const (
	lifecycleIdle lifecycle = iota
	lifecycleConnecting
	lifecycleReady
	lifecycleClosed
)
