package models

// GenerationProvider selects the remote generation backend.
type GenerationProvider string

const (
	ProviderOpenAI    GenerationProvider = "openai"
	ProviderAnthropic GenerationProvider = "anthropic"
	ProviderGemini    GenerationProvider = "gemini"
)

// GenerationConfig configures the generation backend and orchestration limits.
// An empty APIKey selects the offline template backend.
type GenerationConfig struct {
	Provider         GenerationProvider    `yaml:"provider" json:"provider"`
	Model            string                `yaml:"model" json:"model,omitzero"`
	APIKey           string                `yaml:"api_key" json:"api_key,omitzero"`
	BaseURL          string                `yaml:"base_url" json:"base_url,omitzero"`
	TimeoutMs        int                   `yaml:"timeout_ms" json:"timeout_ms,omitzero"`
	MaxTokens        int64                 `yaml:"max_tokens" json:"max_tokens,omitzero"`
	Temperature      float64               `yaml:"temperature" json:"temperature,omitzero"`
	MaxConcurrency   int                   `yaml:"max_concurrency" json:"max_concurrency,omitzero"`
	RateLimitPerHour int                   `yaml:"rate_limit_per_hour" json:"rate_limit_per_hour,omitzero"`
	Headers          map[string]string     `yaml:"headers" json:"headers,omitzero"`
	CircuitBreaker   *CircuitBreakerConfig `yaml:"circuit_breaker,omitempty" json:"circuit_breaker,omitzero"`
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold int `json:"failure_threshold,omitzero" yaml:"failure_threshold,omitempty"`
	SuccessThreshold int `json:"success_threshold,omitzero" yaml:"success_threshold,omitempty"`
	TimeoutMs        int `json:"timeout_ms,omitzero" yaml:"timeout_ms,omitempty"`
	ResetAfterMs     int `json:"reset_after_ms,omitzero" yaml:"reset_after_ms,omitempty"`
}

// TranscriptConfig points at the external transcript extraction service.
type TranscriptConfig struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint,omitzero"`
	JWTSecret string `yaml:"jwt_secret" json:"-"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeout_ms,omitzero"`
}
