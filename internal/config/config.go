package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	// Store selects the session store: "postgres" or "memory".
	Store     string
	Port      string
	JWTSecret string
	DevMode   bool
	// AdminOrigins are the browser origins allowed to call the admin API.
	AdminOrigins []string

	IdleTimeout        time.Duration
	LockWait           time.Duration
	DedupTTL           time.Duration
	DefaultLanguage    string
	SupportedLanguages []string
	FreeQuota          map[string]int
	CheckoutURL        string

	AdapterTimeout time.Duration
	AdapterRetries uint64
	AdapterBackoff time.Duration

	RedisAddr     string
	RedisPassword string

	GeminiAPIKey string
	GeminiModel  string

	GeocoderURL    string
	GeocoderAPIKey string
	GeocoderRPS    float64

	LogLevel  string
	LogFormat string
}

// FlowConfig is the part of the configuration the conversation core sees.
type FlowConfig struct {
	IdleTimeout        time.Duration
	FreeQuota          map[string]int
	SupportedLanguages []string
	DefaultLanguage    string
	CheckoutURL        string
}

const defaultFreeQuota = "natal_chart=1,daily_horoscope=5,weekly_horoscope=2,life_path=1"

// Default returns the configuration used when no environment is set. The
// required secrets are left empty.
func Default() *Config {
	quota, err := ParseQuota(defaultFreeQuota)
	if err != nil {
		panic(err)
	}
	return &Config{
		Store:              "postgres",
		Port:               "8080",
		IdleTimeout:        30 * time.Minute,
		LockWait:           5 * time.Second,
		DedupTTL:           24 * time.Hour,
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"en", "es", "fr"},
		FreeQuota:          quota,
		AdapterTimeout:     8 * time.Second,
		AdapterRetries:     2,
		AdapterBackoff:     200 * time.Millisecond,
		GeocoderRPS:        1,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := Default()
	var err error

	if s := os.Getenv("STORE"); s != "" {
		cfg.Store = strings.ToLower(s)
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		return nil, fmt.Errorf("STORE must be postgres or memory, got %q", cfg.Store)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.Store == "postgres" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.DatabaseURL != "" {
		if _, err := url.Parse(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.DevMode = os.Getenv("DEV_MODE") == "true"
	cfg.AdminOrigins = splitList(os.Getenv("ADMIN_ORIGINS"))

	if cfg.IdleTimeout, err = duration("IDLE_TIMEOUT", cfg.IdleTimeout); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = duration("LOCK_WAIT", cfg.LockWait); err != nil {
		return nil, err
	}
	if cfg.DedupTTL, err = duration("DEDUP_TTL", cfg.DedupTTL); err != nil {
		return nil, err
	}
	if cfg.AdapterTimeout, err = duration("ADAPTER_TIMEOUT", cfg.AdapterTimeout); err != nil {
		return nil, err
	}
	if cfg.AdapterBackoff, err = duration("ADAPTER_BACKOFF", cfg.AdapterBackoff); err != nil {
		return nil, err
	}

	if v := os.Getenv("ADAPTER_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("ADAPTER_RETRIES: %w", err)
		}
		cfg.AdapterRetries = n
	}

	if lang := os.Getenv("DEFAULT_LANGUAGE"); lang != "" {
		cfg.DefaultLanguage = strings.ToLower(lang)
	}
	if v := os.Getenv("SUPPORTED_LANGUAGES"); v != "" {
		cfg.SupportedLanguages = splitList(v)
	}
	if !slices.Contains(cfg.SupportedLanguages, cfg.DefaultLanguage) {
		return nil, fmt.Errorf("DEFAULT_LANGUAGE %q is not in SUPPORTED_LANGUAGES", cfg.DefaultLanguage)
	}

	if v := os.Getenv("FREE_QUOTA"); v != "" {
		if cfg.FreeQuota, err = ParseQuota(v); err != nil {
			return nil, fmt.Errorf("FREE_QUOTA: %w", err)
		}
	}

	cfg.CheckoutURL = os.Getenv("CHECKOUT_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = os.Getenv("GEMINI_MODEL")
	cfg.GeocoderURL = os.Getenv("GEOCODER_URL")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if v := os.Getenv("GEOCODER_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("GEOCODER_RPS must be a positive number, got %q", v)
		}
		cfg.GeocoderRPS = rps
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		cfg.LogFormat = f
	}

	return cfg, nil
}

// Flow returns the settings handed to the flow controller.
func (c *Config) Flow() FlowConfig {
	return FlowConfig{
		IdleTimeout:        c.IdleTimeout,
		FreeQuota:          c.FreeQuota,
		SupportedLanguages: c.SupportedLanguages,
		DefaultLanguage:    c.DefaultLanguage,
		CheckoutURL:        c.CheckoutURL,
	}
}

// ParseQuota parses "feature=limit,feature=limit".
func ParseQuota(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, item := range splitList(s) {
		feature, limit, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid quota %q, want feature=limit", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(limit))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid limit in %q", item)
		}
		out[strings.TrimSpace(feature)] = n
	}
	return out, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
