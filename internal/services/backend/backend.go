package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
)

// ErrUnavailable marks failures where the backend could not be reached at all.
var ErrUnavailable = errors.New("generation backend unavailable")

// Backend turns a transcript into content for one output type.
type Backend interface {
	Name() string
	Produce(ctx context.Context, transcript string, outputType models.OutputType) (string, error)
}

// UpstreamError is a failed call that reached the remote model API.
type UpstreamError struct {
	Backend    string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Backend, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// emptyCompletion is returned when the upstream answered without any content.
func emptyCompletion(backend string) error {
	return &UpstreamError{Backend: backend, Message: "upstream returned no choice"}
}

func unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, backend, err)
}
