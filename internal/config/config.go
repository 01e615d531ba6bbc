package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the call relay service.
type Config struct {
	BindAddr         string
	PublicURL        string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	OpenAIAPIKey  string
	RealtimeURL   string
	RealtimeModel string

	TwiMLPath        string
	HandshakeTimeout time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults. The OpenAI
// credential is required: the process refuses to start without it rather than
// run a relay that can never reach the model.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8081"),
		PublicURL:        trimmedEnv("PUBLIC_URL"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "callbridge"),
		AllowAnyOrigin:   true,
		OpenAIAPIKey:     trimmedEnv("OPENAI_API_KEY"),
		RealtimeURL:      envOrDefault("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime"),
		RealtimeModel:    envOrDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview"),
		TwiMLPath:        envOrDefault("TWIML_FILE_PATH", "twiml.xml"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),
		HandshakeTimeout: 10 * time.Second,
		ShutdownTimeout:  15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HandshakeTimeout, err = durationFromEnv("APP_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	if port := trimmedEnv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("PORT parse error: %w", err)
		}
		cfg.BindAddr = fmt.Sprintf(":%d", n)
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if cfg.HandshakeTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_HANDSHAKE_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
