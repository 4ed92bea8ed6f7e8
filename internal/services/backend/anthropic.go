package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// AnthropicBackend calls the Anthropic messages API.
type AnthropicBackend struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

func NewAnthropicBackend(cfg models.GenerationConfig, extra ...option.RequestOption) *AnthropicBackend {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	for key, value := range cfg.Headers {
		clientOpts = append(clientOpts, option.WithHeader(key, value))
	}

	if cfg.TimeoutMs > 0 {
		timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
		clientOpts = append(clientOpts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	clientOpts = append(clientOpts, extra...)

	return &AnthropicBackend{
		client:      anthropic.NewClient(clientOpts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (b *AnthropicBackend) Name() string {
	return string(models.ProviderAnthropic)
}

func (b *AnthropicBackend) Produce(ctx context.Context, transcript string, outputType models.OutputType) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(transcript, outputType))),
		},
		Temperature: anthropic.Float(b.temperature),
	}

	startTime := time.Now()
	message, err := b.client.Messages.New(ctx, params)
	duration := time.Since(startTime)

	if err != nil {
		fiberlog.Errorf("Anthropic request for %s failed after %v: %v", outputType, duration, err)
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{
				Backend:    b.Name(),
				StatusCode: apiErr.StatusCode,
				Message:    http.StatusText(apiErr.StatusCode),
				Err:        err,
			}
		}
		return "", unavailable(b.Name(), err)
	}

	fiberlog.Debugf("Anthropic request for %s completed in %v - usage: input:%d, output:%d",
		outputType, duration, message.Usage.InputTokens, message.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", emptyCompletion(b.Name())
	}
	return content, nil
}
