package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPipelineError(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		details string
		runID   string
	}{
		{
			name:    "Missing corpus",
			code:    ErrMissingInput,
			message: "required input \"corpus\" not found",
			details: "/data/aacrArticle.json",
			runID:   "run-123",
		},
		{
			name:    "Output failure",
			code:    ErrOutputError,
			message: "writing enriched output",
			runID:   "run-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPipelineError(tt.code, tt.message, tt.details, tt.runID, nil)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.RunID != tt.runID {
				t.Errorf("Expected runID %s, got %s", tt.runID, err.RunID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expected := tt.code + ": " + tt.message
			if tt.details != "" {
				expected += " (" + tt.details + ")"
			}
			if err.Error() != expected {
				t.Errorf("Expected error string %s, got %s", expected, err.Error())
			}
		})
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("stat corpus: %w", ErrNotFound)
	err := NewMissingInputError("corpus", "in.json", "run-1", cause)

	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected wrapped cause to be reachable through errors.Is")
	}

	var pe *PipelineError
	if !errors.As(fmt.Errorf("run: %w", err), &pe) {
		t.Fatal("Expected errors.As to find the PipelineError")
	}
	if pe.Code != ErrMissingInput {
		t.Errorf("Expected code %s, got %s", ErrMissingInput, pe.Code)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("matching.gene_cutoff", "must be in (0, 1]", 1.5)

	if err.Field != "matching.gene_cutoff" {
		t.Errorf("Expected field matching.gene_cutoff, got %s", err.Field)
	}

	expected := "validation error for field 'matching.gene_cutoff': must be in (0, 1]"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
}
