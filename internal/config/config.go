// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultBridgeAddr is where the protocol bridge listens by default.
	DefaultBridgeAddr = "unix:///run/tgbridge/socket"

	// DefaultPendingAuthTTL is how long an unfinished login is kept.
	DefaultPendingAuthTTL = 10 * time.Minute
)

// Config holds all configuration for the application.
type Config struct {
	APIHash    string
	BridgeAddr string
	Host       string
	Port       string
	Env        string
	LogLevel   string

	// Conversational relay
	ChatbaseAPIKey    string
	ChatbaseChatbotID string
	ChatbaseBaseURL   string

	CORSOrigins    []string
	PendingAuthTTL time.Duration
	APIID          int

	// ReplyBurst caps back-to-back auto-replies per chat; 0 means no cap.
	ReplyBurst int

	RelayEnabled bool
	// relayForced records an explicit RELAY_ENABLED=true.
	relayForced bool
}

// Load reads configuration from environment variables, loading a .env file
// first if one is present. Malformed values are errors; missing required
// values are reported by Validate.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BridgeAddr:        getEnv("TELEGRAM_BRIDGE_ADDR", DefaultBridgeAddr),
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		ChatbaseChatbotID: strings.TrimSpace(os.Getenv("CHATBASE_CHATBOT_ID")),
		ChatbaseBaseURL:   strings.TrimSpace(os.Getenv("CHATBASE_BASE_URL")),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "*")),
		PendingAuthTTL:    DefaultPendingAuthTTL,
	}

	var errs []error

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_API_ID must be an integer: %w", err))
		}
		cfg.APIID = id
	}

	var err error
	if cfg.APIHash, err = secretFromEnv("TELEGRAM_API_HASH"); err != nil {
		errs = append(errs, fmt.Errorf("TELEGRAM_API_HASH: %w", err))
	}
	if cfg.ChatbaseAPIKey, err = secretFromEnv("CHATBASE_API_KEY"); err != nil {
		errs = append(errs, fmt.Errorf("CHATBASE_API_KEY: %w", err))
	}

	if raw := strings.TrimSpace(os.Getenv("PENDING_AUTH_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("PENDING_AUTH_TTL: %w", err))
		case ttl <= 0:
			errs = append(errs, fmt.Errorf("PENDING_AUTH_TTL must be positive, got %s", raw))
		default:
			cfg.PendingAuthTTL = ttl
		}
	}

	if raw := strings.TrimSpace(os.Getenv("RELAY_REPLY_BURST")); raw != "" {
		burst, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("RELAY_REPLY_BURST must be an integer: %w", err))
		case burst < 0:
			errs = append(errs, fmt.Errorf("RELAY_REPLY_BURST must not be negative, got %d", burst))
		default:
			cfg.ReplyBurst = burst
		}
	}

	cfg.RelayEnabled = cfg.ChatbaseConfigured()
	if raw := strings.TrimSpace(os.Getenv("RELAY_ENABLED")); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("RELAY_ENABLED must be a boolean: %w", err))
		} else {
			cfg.RelayEnabled = enabled
			cfg.relayForced = enabled
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate returns an error naming every missing required value.
func (c *Config) Validate() error {
	var missing []string
	if c.APIID == 0 {
		missing = append(missing, "TELEGRAM_API_ID")
	}
	if c.APIHash == "" {
		missing = append(missing, "TELEGRAM_API_HASH")
	}
	if c.relayForced && !c.ChatbaseConfigured() {
		missing = append(missing, "CHATBASE_API_KEY and CHATBASE_CHATBOT_ID (RELAY_ENABLED=true)")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	return nil
}

// APIConfigured reports whether the protocol credentials are present.
func (c *Config) APIConfigured() bool {
	return c.APIID != 0 && c.APIHash != ""
}

// ChatbaseConfigured reports whether both relay credentials are present.
func (c *Config) ChatbaseConfigured() bool {
	return c.ChatbaseAPIKey != "" && c.ChatbaseChatbotID != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
