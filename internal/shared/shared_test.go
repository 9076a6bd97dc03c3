package shared

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestUnmarshalJSON_Valid(t *testing.T) {
	var got struct {
		StepNumber int `json:"step_number"`
	}
	if err := UnmarshalJSON([]byte(`{"step_number": 3}`), &got); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if got.StepNumber != 3 {
		t.Errorf("Expected 3, got %d", got.StepNumber)
	}
}

func TestUnmarshalJSON_RepairsTrailingComma(t *testing.T) {
	var got struct {
		Label string `json:"label"`
	}
	if err := UnmarshalJSON([]byte(`{"label": "pasta",}`), &got); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if got.Label != "pasta" {
		t.Errorf("Expected pasta, got %q", got.Label)
	}
}

func TestUnmarshalJSON_TypeMismatchNotRepaired(t *testing.T) {
	var got struct {
		StepNumber int `json:"step_number"`
	}
	if err := UnmarshalJSON([]byte(`{"step_number": "three"}`), &got); err == nil {
		t.Error("Expected type error, got nil")
	}
}

func TestIsDisconnectError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDisconnectError(tt.err); got != tt.want {
				t.Errorf("IsDisconnectError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
