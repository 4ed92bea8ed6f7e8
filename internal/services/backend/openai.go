package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/openai/openai-go/v2"
	openaiOption "github.com/openai/openai-go/v2/option"
)

// OpenAIBackend calls an OpenAI-compatible chat completions API.
type OpenAIBackend struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewOpenAIBackend(cfg models.GenerationConfig, extra ...openaiOption.RequestOption) *OpenAIBackend {
	opts := []openaiOption.RequestOption{
		openaiOption.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openaiOption.WithBaseURL(cfg.BaseURL))
	}

	for key, value := range cfg.Headers {
		opts = append(opts, openaiOption.WithHeader(key, value))
	}

	if cfg.TimeoutMs > 0 {
		timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
		opts = append(opts, openaiOption.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	opts = append(opts, extra...)

	return &OpenAIBackend{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (b *OpenAIBackend) Name() string {
	return string(models.ProviderOpenAI)
}

func (b *OpenAIBackend) Produce(ctx context.Context, transcript string, outputType models.OutputType) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(transcript, outputType)),
		},
		MaxTokens:   openai.Int(b.maxTokens),
		Temperature: openai.Float(b.temperature),
	}

	startTime := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, params)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("OpenAI request for %s failed after %v: %v", outputType, duration, err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{
				Backend:    b.Name(),
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Err:        err,
			}
		}
		return "", unavailable(b.Name(), err)
	}

	fiberlog.Debugf("OpenAI request for %s completed in %v", outputType, duration)

	if len(resp.Choices) == 0 {
		return "", emptyCompletion(b.Name())
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", emptyCompletion(b.Name())
	}
	return content, nil
}
