package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Egham-7/repurpose-api/internal/models"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("REPURPOSE_TEST_KEY", "sk-live")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "key: ${REPURPOSE_TEST_KEY}", "key: sk-live"},
		{"default used", "key: ${REPURPOSE_TEST_UNSET:-fallback}", "key: fallback"},
		{"set beats default", "key: ${REPURPOSE_TEST_KEY:-fallback}", "key: sk-live"},
		{"unset without default", "key: ${REPURPOSE_TEST_UNSET}", "key: "},
		{"no pattern", "key: plain", "key: plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.in); got != tt.want {
				t.Fatalf("substituteEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  allowed_origins: \"*\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Fatalf("port = %q, want %q", cfg.Server.Port, defaultPort)
	}
	if cfg.Database.Type != models.SQLite || cfg.Database.FilePath == "" {
		t.Fatalf("database defaults not applied: %+v", cfg.Database)
	}
	if cfg.Generation.Provider != models.ProviderOpenAI || cfg.Generation.Model != "gpt-4o-mini" {
		t.Fatalf("generation defaults not applied: %+v", cfg.Generation)
	}
	if cfg.Generation.MaxConcurrency != defaultMaxConcurrency {
		t.Fatalf("max concurrency = %d, want %d", cfg.Generation.MaxConcurrency, defaultMaxConcurrency)
	}
	if cfg.Auth.CookieName != "session" {
		t.Fatalf("cookie name = %q, want session", cfg.Auth.CookieName)
	}
	if got := cfg.SessionTTL().Hours(); got != 720 {
		t.Fatalf("session ttl = %vh, want 720h", got)
	}
	if cfg.SecureCookie() {
		t.Fatalf("secure cookie should default off in development")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPlanOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  allowed_origins: "*"
plans:
  Pro:
    credits: 250
    stripe_price_id: price_pro
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	catalog := cfg.PlanCatalog()
	pro := catalog.Resolve(models.PlanPro)
	if pro.Credits != 250 || pro.StripePriceID != "price_pro" || pro.Name != "Pro" {
		t.Fatalf("pro plan = %+v", pro)
	}
	if free := catalog.Resolve("platinum"); free.ID != models.PlanFree || free.Credits != 5 {
		t.Fatalf("unknown plan resolved to %+v, want free", free)
	}
}

func TestValidateMissingFields(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: "3000"
transcript:
  endpoint: http://transcripts.internal
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = cfg.Validate()
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate error = %v, want *ValidationError", err)
	}
	want := map[string]bool{"server.allowed_origins": true, "transcript.jwt_secret": true}
	if len(vErr.MissingFields) != len(want) {
		t.Fatalf("missing fields = %v", vErr.MissingFields)
	}
	for _, f := range vErr.MissingFields {
		if !want[f] {
			t.Fatalf("unexpected missing field %q", f)
		}
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  allowed_origins: \"*\"\ngeneration:\n  provider: mistral\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("REPURPOSE_TEST_PORT", "9090")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "server:\n  port: \"${REPURPOSE_TEST_PORT:-8080}\"\n  allowed_origins: \"*\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("port = %q, want 9090", cfg.Server.Port)
	}

	if _, err := LoadFromFile(filepath.Join(dir, "config.json")); err == nil {
		t.Fatalf("expected extension check to reject .json")
	}
}
