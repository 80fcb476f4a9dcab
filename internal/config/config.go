package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Metadata      MetadataConfig
	Federation    FederationConfig
	Cache         CacheConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// MetadataConfig points at the SQLite file holding connections, saved
// queries and execution history.
type MetadataConfig struct {
	Path         string
	MaxOpenConns int
}

type FederationConfig struct {
	DefaultTimeout    time.Duration
	DefaultLimit      int
	ApplyLimitDefault bool
	MaxSubQueries     int
}

type CacheConfig struct {
	ResultEnabled   bool
	ResultSize      int
	ResultTTL       time.Duration
	TranslationSize int
	TranslationTTL  time.Duration
}

type AIConfig struct {
	TranslateEnabled bool
	BaseURL          string
	APIKey           string
	Model            string
	Temperature      float64
	Timeout          time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("FEDQUERY_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid FEDQUERY_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "FEDQUERY_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_METADATA_PATH", &cfg.Metadata.Path); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEDQUERY_METADATA_MAX_OPEN_CONNS", &cfg.Metadata.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_FEDERATION_DEFAULT_TIMEOUT", &cfg.Federation.DefaultTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEDQUERY_FEDERATION_DEFAULT_LIMIT", &cfg.Federation.DefaultLimit); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEDQUERY_FEDERATION_APPLY_LIMIT", &cfg.Federation.ApplyLimitDefault); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEDQUERY_FEDERATION_MAX_SUBQUERIES", &cfg.Federation.MaxSubQueries); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEDQUERY_CACHE_RESULT_ENABLED", &cfg.Cache.ResultEnabled); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEDQUERY_CACHE_RESULT_SIZE", &cfg.Cache.ResultSize); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_CACHE_RESULT_TTL", &cfg.Cache.ResultTTL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "FEDQUERY_CACHE_TRANSLATION_SIZE", &cfg.Cache.TranslationSize); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_CACHE_TRANSLATION_TTL", &cfg.Cache.TranslationTTL); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEDQUERY_AI_TRANSLATE_ENABLED", &cfg.AI.TranslateEnabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "FEDQUERY_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "FEDQUERY_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEDQUERY_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "FEDQUERY_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "FEDQUERY_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "FEDQUERY_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Federation.DefaultTimeout <= 0 {
		return Config{}, fmt.Errorf("federation default timeout must be positive")
	}
	if cfg.Federation.DefaultLimit <= 0 {
		return Config{}, fmt.Errorf("federation default limit must be positive")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "fedquery-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Metadata: MetadataConfig{
			Path:         "fedquery.db",
			MaxOpenConns: 1,
		},
		Federation: FederationConfig{
			DefaultTimeout:    60 * time.Second,
			DefaultLimit:      1000,
			ApplyLimitDefault: true,
			MaxSubQueries:     8,
		},
		Cache: CacheConfig{
			ResultEnabled:   false,
			ResultSize:      256,
			ResultTTL:       time.Minute,
			TranslationSize: 1024,
			TranslationTTL:  10 * time.Minute,
		},
		AI: AIConfig{
			TranslateEnabled: false,
			BaseURL:          "https://api.openai.com",
			Model:            "gpt-5",
			Temperature:      0.1,
			Timeout:          15 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Metadata.Path = ":memory:"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Cache.ResultEnabled = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
