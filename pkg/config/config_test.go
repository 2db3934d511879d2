package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("default server.read_timeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("default server.write_timeout = %v, want 0", cfg.Server.WriteTimeout)
	}
	if cfg.Server.MaxBodySize != 10<<20 {
		t.Errorf("default server.max_body_size = %d, want 10 MiB", cfg.Server.MaxBodySize)
	}
	if !cfg.Errors.ExposeTrace {
		t.Error("default errors.expose_trace = false, want true")
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("default auth.type = %q, want \"none\"", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("default metrics = %+v", cfg.Observability.Metrics)
	}
	if cfg.Observability.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestServerAddr(t *testing.T) {
	if got := (ServerConfig{Port: 8080}).Addr(); got != ":8080" {
		t.Errorf("Addr() = %q, want :8080", got)
	}
	if got := (ServerConfig{Host: "127.0.0.1", Port: 9000}).Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9000", got)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 60s
  write_timeout: 180s
  shutdown_timeout: 5s
  max_body_size: 1024
errors:
  expose_trace: false
logging:
  level: DEBUG
  debug: pipeline,router
  format: json
observability:
  metrics:
    enabled: false
  tracing:
    enabled: true
    service_name: orders
auth:
  type: apikey
  api_keys:
    - key: sk-key-1
      subject: alice
      tenant_id: org-1
      service_tier: premium
    - key: sk-key-2
      subject: bob
  rate_limit:
    default_rpm: 60
    tiers:
      premium: 600
`
	cfg, err := Load(writeTemp(t, "config-*.yaml", yamlContent))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("server addr = %q", cfg.Server.Addr())
	}
	if cfg.Server.ReadTimeout != 60*time.Second || cfg.Server.WriteTimeout != 180*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown_timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.MaxBodySize != 1024 {
		t.Errorf("max_body_size = %d, want 1024", cfg.Server.MaxBodySize)
	}
	if cfg.Errors.ExposeTrace {
		t.Error("errors.expose_trace = true, want false")
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Debug != "pipeline,router" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Observability.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.ServiceName != "orders" {
		t.Errorf("tracing = %+v", cfg.Observability.Tracing)
	}
	if len(cfg.Auth.APIKeys) != 2 {
		t.Fatalf("auth.api_keys len = %d, want 2", len(cfg.Auth.APIKeys))
	}
	if k := cfg.Auth.APIKeys[0]; k.Subject != "alice" || k.TenantID != "org-1" || k.ServiceTier != "premium" {
		t.Errorf("auth.api_keys[0] = %+v", k)
	}
	if cfg.Auth.RateLimit.DefaultRPM != 60 || cfg.Auth.RateLimit.Tiers["premium"] != 600 {
		t.Errorf("rate_limit = %+v", cfg.Auth.RateLimit)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpFile := writeTemp(t, "config-*.yaml", `
server:
  port: 9090
`)

	t.Setenv("KETTE_PORT", "7070")
	t.Setenv("KETTE_HOST", "0.0.0.0")
	t.Setenv("KETTE_EXPOSE_TRACE", "false")
	t.Setenv("KETTE_READ_TIMEOUT", "5s")
	t.Setenv("KETTE_METRICS_PATH", "/prom")
	t.Setenv("KETTE_AUTH_TYPE", "jwt")
	t.Setenv("KETTE_JWT_SECRET", "shh")
	t.Setenv("KETTE_RATE_LIMIT_RPM", "30")

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("server.port = %d, want 7070 (env override)", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Errors.ExposeTrace {
		t.Error("errors.expose_trace should be overridden to false")
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Observability.Metrics.Path != "/prom" {
		t.Errorf("metrics.path = %q, want /prom", cfg.Observability.Metrics.Path)
	}
	if cfg.Auth.Type != "jwt" || cfg.Auth.JWT.Secret != "shh" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Auth.RateLimit.DefaultRPM != 30 {
		t.Errorf("rate_limit.default_rpm = %d, want 30", cfg.Auth.RateLimit.DefaultRPM)
	}
}

func TestEnvOverrideMalformed(t *testing.T) {
	tests := []struct {
		name, value string
	}{
		{"KETTE_PORT", "eighty"},
		{"KETTE_EXPOSE_TRACE", "maybe"},
		{"KETTE_READ_TIMEOUT", "soon"},
		{"KETTE_MAX_BODY_SIZE", "big"},
		{"KETTE_API_KEYS", "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KETTE_CONFIG", "")
			t.Setenv(tt.name, tt.value)

			_, err := Load(writeTemp(t, "config-*.yaml", "server:\n  port: 8080\n"))
			if err == nil || !strings.Contains(err.Error(), tt.name) {
				t.Errorf("Load() error = %v, want one naming %s", err, tt.name)
			}
		})
	}
}

func TestEnvAPIKeys(t *testing.T) {
	t.Setenv("KETTE_AUTH_TYPE", "apikey")
	t.Setenv("KETTE_API_KEYS", `[{"key":"sk-env","subject":"carol","service_tier":"gold"}]`)

	cfg, err := Load(writeTemp(t, "config-*.yaml", ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].Subject != "carol" || cfg.Auth.APIKeys[0].ServiceTier != "gold" {
		t.Errorf("auth.api_keys = %+v", cfg.Auth.APIKeys)
	}
}

func TestFileReferences(t *testing.T) {
	secretFile := writeTemp(t, "secret-*.txt", "  hmac-from-file  \n")
	keyFile := writeTemp(t, "apikey-*.txt", "  sk-key-from-file  \n")

	cfg, err := Load(writeTemp(t, "config-*.yaml", `
auth:
  type: apikey
  jwt:
    secret_file: `+secretFile+`
  api_keys:
    - key_file: `+keyFile+`
      subject: alice
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.JWT.Secret != "hmac-from-file" {
		t.Errorf("auth.jwt.secret = %q, want trimmed file content", cfg.Auth.JWT.Secret)
	}
	if cfg.Auth.APIKeys[0].Key != "sk-key-from-file" {
		t.Errorf("auth.api_keys[0].key = %q, want trimmed file content", cfg.Auth.APIKeys[0].Key)
	}
}

func TestFileReferenceDoesNotOverrideExplicitValue(t *testing.T) {
	secretFile := writeTemp(t, "secret-*.txt", "from-file")

	cfg, err := Load(writeTemp(t, "config-*.yaml", `
auth:
  jwt:
    secret: explicit
    secret_file: `+secretFile+`
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.JWT.Secret != "explicit" {
		t.Errorf("auth.jwt.secret = %q, want explicit value to win", cfg.Auth.JWT.Secret)
	}
}

func TestFileReferenceMissing(t *testing.T) {
	_, err := Load(writeTemp(t, "config-*.yaml", `
auth:
  jwt:
    secret_file: /nonexistent/kette-secret
`))
	if err == nil || !strings.Contains(err.Error(), "auth.jwt.secret_file") {
		t.Errorf("Load() error = %v, want secret_file failure", err)
	}
}

func TestFileDiscovery(t *testing.T) {
	cfg, err := Load(writeTemp(t, "config-*.yaml", "server:\n  port: 9001\n"))
	if err != nil {
		t.Fatalf("Load(explicit) error: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("explicit path: port = %d, want 9001", cfg.Server.Port)
	}

	t.Setenv("KETTE_CONFIG", writeTemp(t, "envconfig-*.yaml", "server:\n  port: 9002\n"))
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(KETTE_CONFIG) error: %v", err)
	}
	if cfg.Server.Port != 9002 {
		t.Errorf("KETTE_CONFIG: port = %d, want 9002", cfg.Server.Port)
	}

	t.Setenv("KETTE_CONFIG", "")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load(no file) error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("no file: port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/kette.yaml"); err == nil {
		t.Error("Load() with missing explicit file should fail")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port must be in 1..65535"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero body size", func(c *Config) { c.Server.MaxBodySize = 0 }, "server.max_body_size"},
		{"negative timeout", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, "timeouts must not be negative"},
		{"bad log level", func(c *Config) { c.Logging.Level = "LOUD" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative metrics path", func(c *Config) { c.Observability.Metrics.Path = "metrics" }, "observability.metrics.path"},
		{"invalid auth type", func(c *Config) { c.Auth.Type = "oauth2" }, "auth.type must be"},
		{"apikey without keys", func(c *Config) { c.Auth.Type = "apikey" }, "auth.api_keys must not be empty"},
		{"apikey without subject", func(c *Config) {
			c.Auth.Type = "apikey"
			c.Auth.APIKeys = []APIKeyConfig{{Key: "k"}}
		}, "auth.api_keys[0].subject"},
		{"jwt without key source", func(c *Config) { c.Auth.Type = "jwt" }, "auth.jwt.jwks_url or auth.jwt.secret"},
		{"negative tier rpm", func(c *Config) { c.Auth.RateLimit.Tiers = map[string]int{"gold": -1} }, "auth.rate_limit.tiers.gold"},
		{"disabled metrics ignore path", func(c *Config) {
			c.Observability.Metrics.Enabled = false
			c.Observability.Metrics.Path = ""
		}, ""},
		{"valid jwt", func(c *Config) {
			c.Auth.Type = "jwt"
			c.Auth.JWT.JWKSURL = "https://auth.example.com/jwks"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationReportsAll(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = -1
	cfg.Auth.Type = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.port", "auth.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestYAMLDefaultsMerge(t *testing.T) {
	cfg, err := Load(writeTemp(t, "config-*.yaml", "logging:\n  level: WARN\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("logging.level = %q, want WARN", cfg.Logging.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("logging.format = %q, want default text", cfg.Logging.Format)
	}
	if cfg.Observability.Tracing.ServiceName != "kette" {
		t.Errorf("tracing.service_name = %q, want default kette", cfg.Observability.Tracing.ServiceName)
	}
}

// writeTemp creates a temporary file with the given content and returns its path.
func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return f.Name()
}
