package recipe

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const finishReasonStop = "stop"

// Request is one structured-output call to a language model.
type Request struct {
	Name        string
	Description string
	System      string
	Prompt      string
	Schema      *jsonschema.Schema
}

// Generator returns the model's JSON output for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator implements Generator with chat completions and a strict JSON schema response format.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. baseURL may be empty.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIGenerator{client: &client, model: model}
}

// Generate runs the request and returns the raw message content.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Name,
					Description: param.NewOpt(req.Description),
					Schema:      (any)(strictSchema(req.Schema)),
					Strict:      param.NewOpt(true),
				},
			},
		},
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("refused: %s", choice.Message.Refusal)
	}
	if choice.FinishReason != finishReasonStop {
		return "", fmt.Errorf("unexpected finish reason: %s", choice.FinishReason)
	}
	if choice.Message.Content == "" {
		return "", errors.New("no content")
	}
	return choice.Message.Content, nil
}

// strictSchema rewrites a generated schema for structured outputs: every
// object disallows additional properties and lists every property as
// required, with optional properties made nullable.
func strictSchema(s *jsonschema.Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}
	return formatStrict(s.CloneSchemas())
}

func formatStrict(m *jsonschema.Schema) *jsonschema.Schema {
	if m == nil {
		return nil
	}
	if m.Type != "" && len(m.Types) > 0 {
		m.Types = append(m.Types, m.Type)
		m.Type = ""
	}

	typ := m.Type
	if typ == "" {
		for _, t := range m.Types {
			if t != "null" && t != "" {
				typ = t
				break
			}
		}
	}

	switch typ {
	case "array":
		m.Items = formatStrict(m.Items)
	case "object":
		m.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		required := make(map[string]struct{}, len(m.Properties))
		for _, name := range m.Required {
			required[name] = struct{}{}
		}
		for name, prop := range m.Properties {
			if _, ok := required[name]; !ok {
				required[name] = struct{}{}
				if prop.Type != "" {
					prop.Types = []string{prop.Type}
					prop.Type = ""
				}
				if !slices.Contains(prop.Types, "null") {
					prop.Types = append(prop.Types, "null")
				}
			}
			m.Properties[name] = formatStrict(prop)
		}
		m.Required = slices.Sorted(maps.Keys(required))
	}
	return m
}
