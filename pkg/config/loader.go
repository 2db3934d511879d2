package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, KETTE_CONFIG env, ./config.yaml, /etc/kette/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, or "".
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("KETTE_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/kette/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile parses path into cfg. Fields absent from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps KETTE_* environment variables onto cfg. Malformed
// numeric, boolean or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	e := envReader{}

	e.str("KETTE_HOST", &cfg.Server.Host)
	e.int("KETTE_PORT", &cfg.Server.Port)
	e.duration("KETTE_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.duration("KETTE_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.duration("KETTE_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	e.int64("KETTE_MAX_BODY_SIZE", &cfg.Server.MaxBodySize)

	e.bool("KETTE_EXPOSE_TRACE", &cfg.Errors.ExposeTrace)

	e.str("KETTE_LOG_LEVEL", &cfg.Logging.Level)
	e.str("KETTE_DEBUG", &cfg.Logging.Debug)
	e.str("KETTE_LOG_FORMAT", &cfg.Logging.Format)

	e.bool("KETTE_METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)
	e.str("KETTE_METRICS_PATH", &cfg.Observability.Metrics.Path)
	e.bool("KETTE_TRACING_ENABLED", &cfg.Observability.Tracing.Enabled)
	e.str("KETTE_SERVICE_NAME", &cfg.Observability.Tracing.ServiceName)

	e.str("KETTE_AUTH_TYPE", &cfg.Auth.Type)
	e.str("KETTE_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	e.str("KETTE_JWT_AUDIENCE", &cfg.Auth.JWT.Audience)
	e.str("KETTE_JWT_JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	e.str("KETTE_JWT_SECRET", &cfg.Auth.JWT.Secret)
	e.int("KETTE_RATE_LIMIT_RPM", &cfg.Auth.RateLimit.DefaultRPM)

	// KETTE_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("KETTE_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("KETTE_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	return e.err()
}

type envReader struct {
	errs []error
}

func (e *envReader) str(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func (e *envReader) int(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(name string, dst *int64) {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = n
	}
}

func (e *envReader) bool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences fills empty value fields from their _file
// counterparts, trimming surrounding whitespace.
func resolveFileReferences(cfg *Config) error {
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
