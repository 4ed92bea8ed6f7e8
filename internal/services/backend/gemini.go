package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini generateContent API.
type GeminiBackend struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

func NewGeminiBackend(ctx context.Context, cfg models.GenerationConfig) (*GeminiBackend, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if len(cfg.Headers) > 0 {
		clientConfig.HTTPOptions.Headers = http.Header{}
		for key, value := range cfg.Headers {
			clientConfig.HTTPOptions.Headers.Set(key, value)
		}
	}
	if cfg.TimeoutMs > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiBackend{
		client:      client,
		model:       cfg.Model,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

func (b *GeminiBackend) Name() string {
	return string(models.ProviderGemini)
}

func (b *GeminiBackend) Produce(ctx context.Context, transcript string, outputType models.OutputType) (string, error) {
	temperature := b.temperature
	generationConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   b.maxTokens,
	}

	startTime := time.Now()
	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(BuildPrompt(transcript, outputType)), generationConfig)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Gemini request for %s failed after %v: %v", outputType, duration, err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{
				Backend:    b.Name(),
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
		return "", unavailable(b.Name(), err)
	}

	fiberlog.Debugf("Gemini request for %s completed in %v", outputType, duration)

	if resp == nil || len(resp.Candidates) == 0 {
		return "", emptyCompletion(b.Name())
	}
	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", emptyCompletion(b.Name())
	}
	return content, nil
}
