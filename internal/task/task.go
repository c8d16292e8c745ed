package task

import (
	"strings"

	"github.com/google/uuid"
)

// Task is one user-submitted prompt paired with the mode active at submission.
// It is never mutated after New returns.
type Task struct {
	ID     string
	Prompt string
	Mode   Mode
}

// New builds a task with a fresh correlation id.
func New(prompt string, mode Mode) Task {
	return Task{ID: uuid.NewString(), Prompt: prompt, Mode: mode}
}

// Markers prefixed onto failure results.
const (
	ErrorPrefix        = "Error: "
	HTTPErrorPrefix    = "HTTP Error: "
	RequestErrorPrefix = "Request Error: "
)

// IsFailure reports whether a result string carries one of the failure markers.
func IsFailure(result string) bool {
	return strings.HasPrefix(result, ErrorPrefix) ||
		strings.HasPrefix(result, HTTPErrorPrefix) ||
		strings.HasPrefix(result, RequestErrorPrefix)
}
