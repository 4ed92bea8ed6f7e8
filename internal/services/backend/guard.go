package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
)

// Breaker is the subset of circuitbreaker.CircuitBreaker the guard needs.
type Breaker interface {
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
}

// GuardedBackend short-circuits calls to a remote backend while its breaker is open.
type GuardedBackend struct {
	next    Backend
	breaker Breaker
}

func NewGuardedBackend(next Backend, breaker Breaker) *GuardedBackend {
	return &GuardedBackend{next: next, breaker: breaker}
}

func (g *GuardedBackend) Name() string {
	return g.next.Name()
}

func (g *GuardedBackend) Produce(ctx context.Context, transcript string, outputType models.OutputType) (string, error) {
	if !g.breaker.CanExecute() {
		return "", fmt.Errorf("%w: %s circuit open", ErrUnavailable, g.next.Name())
	}

	content, err := g.next.Produce(ctx, transcript, outputType)
	if err != nil {
		// A cancelled request says nothing about upstream health.
		if !errors.Is(err, context.Canceled) {
			g.breaker.RecordFailure()
		}
		return "", err
	}

	g.breaker.RecordSuccess()
	return content, nil
}
