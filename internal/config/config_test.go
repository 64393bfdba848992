package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tgpulse/internal/config"
)

var configKeys = []string{
	"TELEGRAM_API_ID", "TELEGRAM_API_HASH", "TELEGRAM_API_HASH_FILE", "TELEGRAM_BRIDGE_ADDR",
	"HOST", "PORT", "ENV", "LOG_LEVEL", "CORS_ORIGINS",
	"CHATBASE_API_KEY", "CHATBASE_API_KEY_FILE", "CHATBASE_CHATBOT_ID", "CHATBASE_BASE_URL",
	"RELAY_ENABLED", "RELAY_REPLY_BURST", "PENDING_AUTH_TTL",
}

// cleanEnv isolates a test from the ambient environment.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "abcdef")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 12345, cfg.APIID)
	assert.Equal(t, "abcdef", cfg.APIHash)
	assert.Equal(t, config.DefaultBridgeAddr, cfg.BridgeAddr)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, config.DefaultPendingAuthTTL, cfg.PendingAuthTTL)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.APIConfigured())
	assert.False(t, cfg.RelayEnabled)
	assert.Zero(t, cfg.ReplyBurst, "reply limiting is off unless asked for")
}

func TestLoad_Overrides(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_API_ID", "1")
	t.Setenv("TELEGRAM_API_HASH", "h")
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("PENDING_AUTH_TTL", "90s")
	t.Setenv("RELAY_REPLY_BURST", "3")
	t.Setenv("CHATBASE_API_KEY", "key")
	t.Setenv("CHATBASE_CHATBOT_ID", "bot")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.PendingAuthTTL)
	assert.Equal(t, 3, cfg.ReplyBurst)
	assert.True(t, cfg.RelayEnabled, "relay defaults on when Chatbase is configured")
}

func TestLoad_RelaySwitch(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_API_ID", "1")
	t.Setenv("TELEGRAM_API_HASH", "h")
	t.Setenv("CHATBASE_API_KEY", "key")
	t.Setenv("CHATBASE_CHATBOT_ID", "bot")
	t.Setenv("RELAY_ENABLED", "false")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.RelayEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SecretFile(t *testing.T) {
	cleanEnv(t)
	t.Setenv("TELEGRAM_API_ID", "1")
	t.Setenv("TELEGRAM_API_HASH_FILE", writeFile("from-file\n")(t))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIHash)
}

func TestLoad_MalformedValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"api id", "TELEGRAM_API_ID", "abc", "TELEGRAM_API_ID must be an integer"},
		{"ttl", "PENDING_AUTH_TTL", "soon", "PENDING_AUTH_TTL"},
		{"negative ttl", "PENDING_AUTH_TTL", "-1m", "must be positive"},
		{"relay flag", "RELAY_ENABLED", "maybe", "RELAY_ENABLED must be a boolean"},
		{"reply burst", "RELAY_REPLY_BURST", "lots", "RELAY_REPLY_BURST must be an integer"},
		{"negative reply burst", "RELAY_REPLY_BURST", "-2", "must not be negative"},
		{"missing secret file", "CHATBASE_API_KEY_FILE", "/nonexistent/key", "secret file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		cleanEnv(t)
		cfg, err := config.Load()
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TELEGRAM_API_ID")
		assert.Contains(t, err.Error(), "TELEGRAM_API_HASH")
		assert.False(t, cfg.APIConfigured())
	})

	t.Run("forced relay without credentials", func(t *testing.T) {
		cleanEnv(t)
		t.Setenv("TELEGRAM_API_ID", "1")
		t.Setenv("TELEGRAM_API_HASH", "h")
		t.Setenv("RELAY_ENABLED", "true")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "RELAY_ENABLED=true")
	})

	t.Run("bad port", func(t *testing.T) {
		cleanEnv(t)
		t.Setenv("TELEGRAM_API_ID", "1")
		t.Setenv("TELEGRAM_API_HASH", "h")
		t.Setenv("PORT", "http")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), "PORT must be numeric")
	})
}
