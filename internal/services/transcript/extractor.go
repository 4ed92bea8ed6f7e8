package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/Egham-7/repurpose-api/internal/services"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"
)

// ErrExtraction is wrapped by every extractor failure.
var ErrExtraction = errors.New("transcript extraction failed")

// Extractor turns a source URL into transcript text.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string, sourceType models.SourceType) (string, error)
}

// New returns an HTTPExtractor when an endpoint is configured and a ReferenceExtractor otherwise.
func New(cfg models.TranscriptConfig) Extractor {
	if cfg.Endpoint == "" {
		fiberlog.Warn("No transcript service configured, URL sources use the source reference as transcript")
		return ReferenceExtractor{}
	}
	return NewHTTPExtractor(cfg)
}

// ReferenceExtractor stands in for real extraction: the transcript names the source URL.
type ReferenceExtractor struct{}

func (ReferenceExtractor) Extract(_ context.Context, sourceURL string, _ models.SourceType) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", fmt.Errorf("%w: empty source url", ErrExtraction)
	}
	return "Content from: " + sourceURL, nil
}

// HTTPExtractor calls an external transcript service authenticated with a short-lived service JWT.
type HTTPExtractor struct {
	client    *services.Client
	jwtSecret string
	retries   int
}

type extractRequest struct {
	URL        string            `json:"url"`
	SourceType models.SourceType `json:"sourceType"`
}

type extractResponse struct {
	Transcript string `json:"transcript"`
	Title      string `json:"title,omitempty"`
}

func NewHTTPExtractor(cfg models.TranscriptConfig) *HTTPExtractor {
	clientConfig := services.DefaultClientConfig(strings.TrimRight(cfg.Endpoint, "/"))
	if cfg.TimeoutMs > 0 {
		clientConfig.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	return &HTTPExtractor{
		client:    services.NewClientWithConfig(clientConfig),
		jwtSecret: cfg.JWTSecret,
		retries:   2,
	}
}

func (e *HTTPExtractor) generateJWT() (string, error) {
	if e.jwtSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "repurpose-api",
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(e.jwtSecret))
}

func (e *HTTPExtractor) Extract(ctx context.Context, sourceURL string, sourceType models.SourceType) (string, error) {
	token, err := e.generateJWT()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var resp extractResponse
	err = e.client.Post(ctx, "/extract", extractRequest{URL: sourceURL, SourceType: sourceType}, &resp, &services.RequestOptions{
		Headers:    map[string]string{"Authorization": "Bearer " + token},
		Retries:    e.retries,
		RetryDelay: 500 * time.Millisecond,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	transcript := strings.TrimSpace(resp.Transcript)
	if transcript == "" {
		return "", fmt.Errorf("%w: service returned an empty transcript", ErrExtraction)
	}

	return transcript, nil
}
