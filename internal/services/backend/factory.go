package backend

import (
	"context"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services/circuitbreaker"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// New selects the backend for cfg. Without an API key the offline fallback is used.
// Remote backends are wrapped in a redis circuit breaker when redisClient is set.
func New(ctx context.Context, cfg models.GenerationConfig, redisClient *redis.Client) (Backend, error) {
	if cfg.APIKey == "" {
		fiberlog.Warn("No generation API key configured, using offline template backend")
		return NewFallbackBackend(), nil
	}

	var remote Backend
	switch cfg.Provider {
	case models.ProviderOpenAI, "":
		remote = NewOpenAIBackend(cfg)
	case models.ProviderAnthropic:
		remote = NewAnthropicBackend(cfg)
	case models.ProviderGemini:
		gemini, err := NewGeminiBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		remote = gemini
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
	}

	fiberlog.Infof("Using %s generation backend with model %s", remote.Name(), cfg.Model)

	if redisClient == nil {
		return remote, nil
	}

	breaker := circuitbreaker.NewForBackend(redisClient, "generation:"+remote.Name(), cfg.CircuitBreaker)
	return NewGuardedBackend(remote, breaker), nil
}
