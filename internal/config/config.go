package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultEnvironment       = "development"
	defaultRequestsPerMin    = 1000
	defaultCookieName        = "session"
	defaultSessionTTLHours   = 30 * 24
	defaultMaxTokens         = 1500
	defaultTemperature       = 0.7
	defaultMaxConcurrency    = 4
	defaultGenerationTimeout = 60000
	defaultTranscriptTimeout = 30000
)

// defaultModels is the model used per provider when generation.model is unset.
var defaultModels = map[models.GenerationProvider]string{
	models.ProviderOpenAI:    "gpt-4o-mini",
	models.ProviderAnthropic: "claude-3-5-haiku-latest",
	models.ProviderGemini:    "gemini-2.0-flash",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

// Config represents the complete application configuration
type Config struct {
	Server     models.ServerConfig            `yaml:"server"`
	Database   models.DatabaseConfig          `yaml:"database"`
	RedisURL   string                         `yaml:"redis_url,omitempty"`
	Auth       models.AuthConfig              `yaml:"auth"`
	Plans      map[string]models.PlanOverride `yaml:"plans,omitempty"`
	Generation models.GenerationConfig        `yaml:"generation"`
	Transcript models.TranscriptConfig        `yaml:"transcript"`
	Billing    models.BillingConfig           `yaml:"billing"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration after substituting environment variables and applies defaults.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Server.Environment == "" {
		c.Server.Environment = defaultEnvironment
	}
	if c.Server.RequestsPerMin <= 0 {
		c.Server.RequestsPerMin = defaultRequestsPerMin
	}

	if c.Database.Type == "" {
		c.Database.Type = models.SQLite
		if c.Database.FilePath == "" {
			c.Database.FilePath = "repurpose.db"
		}
	}

	if c.Auth.CookieName == "" {
		c.Auth.CookieName = defaultCookieName
	}
	if c.Auth.SessionTTLHr <= 0 {
		c.Auth.SessionTTLHr = defaultSessionTTLHours
	}

	g := &c.Generation
	g.Provider = models.GenerationProvider(strings.ToLower(strings.TrimSpace(string(g.Provider))))
	if g.Provider == "" {
		g.Provider = models.ProviderOpenAI
	}
	if g.Model == "" {
		g.Model = defaultModels[g.Provider]
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = defaultMaxTokens
	}
	if g.Temperature <= 0 {
		g.Temperature = defaultTemperature
	}
	if g.MaxConcurrency <= 0 {
		g.MaxConcurrency = defaultMaxConcurrency
	}
	if g.TimeoutMs <= 0 {
		g.TimeoutMs = defaultGenerationTimeout
	}

	if c.Transcript.TimeoutMs <= 0 {
		c.Transcript.TimeoutMs = defaultTranscriptTimeout
	}
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// SecureCookie reports whether session cookies carry the Secure flag.
// Defaults to on outside development.
func (c *Config) SecureCookie() bool {
	if c.Auth.SecureCookie != nil {
		return *c.Auth.SecureCookie
	}
	return c.Server.Environment != defaultEnvironment
}

// SessionTTL returns the lifetime of a newly issued session.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHr) * time.Hour
}

// PlanCatalog builds the plan table from the defaults and the configured overrides.
func (c *Config) PlanCatalog() *models.PlanCatalog {
	return models.NewPlanCatalog(c.Plans)
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}

	switch c.Database.Type {
	case models.SQLite:
		if c.Database.FilePath == "" {
			missing = append(missing, "database.file_path")
		}
	case models.PostgreSQL, models.MySQL:
		if c.Database.DSN == "" && c.Database.Host == "" {
			missing = append(missing, "database.dsn")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Generation.Provider {
	case models.ProviderOpenAI, models.ProviderAnthropic, models.ProviderGemini:
	default:
		return fmt.Errorf("unsupported generation provider: %s", c.Generation.Provider)
	}
	if c.Generation.APIKey != "" && c.Generation.Model == "" {
		missing = append(missing, "generation.model")
	}

	if c.Transcript.Endpoint != "" && c.Transcript.JWTSecret == "" {
		missing = append(missing, "transcript.jwt_secret")
	}

	if c.Billing.WebhookSecret != "" && c.Billing.SecretKey == "" {
		missing = append(missing, "billing.secret_key")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
