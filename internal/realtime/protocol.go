package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ashureev/recipe-road/internal/domain"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

// Client events.
const (
	eventSessionUpdate          = "session.update"
	eventInputAudioBufferAppend = "input_audio_buffer.append"
	eventConversationItemCreate = "conversation.item.create"
	eventResponseCreate         = "response.create"
)

// Server events.
const (
	eventError                     = "error"
	eventSessionCreated            = "session.created"
	eventSessionUpdated            = "session.updated"
	eventConversationItemCreated   = "conversation.item.created"
	eventResponseCreated           = "response.created"
	eventResponseAudioDelta        = "response.audio.delta"
	eventResponseDone              = "response.done"
	eventFunctionCallArgumentsDone = "response.function_call_arguments.done"
)

const (
	toolMarkStepComplete = "mark_step_complete"
	toolSetTimer         = "set_timer"
)

const greeting = "Hello! I'm ready to start cooking. Please guide me through the first step."

// serverEvent is the subset of fields read from inbound events.
type serverEvent struct {
	Type      string           `json:"type"`
	Session   *serverSession   `json:"session,omitempty"`
	Item      *serverItem      `json:"item,omitempty"`
	Delta     string           `json:"delta,omitempty"`
	Name      string           `json:"name,omitempty"`
	CallID    string           `json:"call_id,omitempty"`
	Arguments string           `json:"arguments,omitempty"`
	Error     *serverErrorBody `json:"error,omitempty"`
}

type serverSession struct {
	ID string `json:"id"`
}

type serverItem struct {
	Role string `json:"role"`
}

type serverErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionConfig struct {
	Modalities              []string             `json:"modalities"`
	Instructions            string               `json:"instructions"`
	Voice                   string               `json:"voice"`
	InputAudioFormat        string               `json:"input_audio_format"`
	OutputAudioFormat       string               `json:"output_audio_format"`
	Temperature             float64              `json:"temperature"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *turnDetection       `json:"turn_detection,omitempty"`
	Tools                   []toolDefinition     `json:"tools"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type toolDefinition struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

type markStepCompleteArgs struct {
	StepNumber int `json:"step_number" jsonschema:"Number of the step the user has finished"`
}

type setTimerArgs struct {
	DurationSeconds int    `json:"duration_seconds" jsonschema:"Timer length in seconds"`
	Label           string `json:"label" jsonschema:"Short name for the timer, such as pasta"`
}

// toolCall is a decoded function call awaiting acknowledgement.
type toolCall struct {
	callID string
	name   string
	output map[string]any
}

var cookingTools = sync.OnceValues(func() ([]toolDefinition, error) {
	stepSchema, err := jsonschema.For[markStepCompleteArgs](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", toolMarkStepComplete, err)
	}
	timerSchema, err := jsonschema.For[setTimerArgs](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", toolSetTimer, err)
	}
	return []toolDefinition{
		{
			Type:        "function",
			Name:        toolMarkStepComplete,
			Description: "Mark a step as completed",
			Parameters:  stepSchema,
		},
		{
			Type:        "function",
			Name:        toolSetTimer,
			Description: "Set a cooking timer",
			Parameters:  timerSchema,
		},
	}, nil
})

func instructions(recipe *domain.DetailedRecipe) (string, error) {
	overview, err := json.MarshalIndent(recipe, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal recipe: %w", err)
	}
	return fmt.Sprintf(`You are a cooking assistant helping the user prepare: %s.

Guide them through each step clearly and patiently.
- Speak naturally and conversationally
- Ask if they're ready before moving to the next step
- Offer to set timers when needed
- Answer any questions about the recipe
- Be encouraging and helpful

Call mark_step_complete when the user finishes a step and set_timer when they agree to a timer.

Current recipe has %d phases.

Recipe overview:
%s
`, recipe.Title, len(recipe.Phases), overview), nil
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}
