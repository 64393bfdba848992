package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tgpulse/internal/config"
	"github.com/Veraticus/tgpulse/internal/relay"
)

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slogLevel(tt.name))
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	logger := newLogger(&config.Config{Env: "production", LogLevel: "warn"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = newLogger(&config.Config{Env: "production", LogLevel: "nonsense"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() {
		port = ""
		debug = false
	})

	cfg := &config.Config{Port: "8080", LogLevel: "info"}
	applyFlags(cfg)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	port = "9000"
	debug = true
	applyFlags(cfg)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewRelay(t *testing.T) {
	assert.Nil(t, newRelay(&config.Config{RelayEnabled: false, ChatbaseAPIKey: "k", ChatbaseChatbotID: "b"}))

	r := newRelay(&config.Config{RelayEnabled: true, ChatbaseAPIKey: "k", ChatbaseChatbotID: "b"})
	require.NotNil(t, r)
	_, ok := r.(*relay.ChatbaseClient)
	assert.True(t, ok)
}

func TestPipelineOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want int
	}{
		{"relay off", config.Config{}, 0},
		{"relay on, unlimited", config.Config{RelayEnabled: true, ChatbaseAPIKey: "k", ChatbaseChatbotID: "b"}, 1},
		{"relay on, limited", config.Config{RelayEnabled: true, ChatbaseAPIKey: "k", ChatbaseChatbotID: "b", ReplyBurst: 5}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, pipelineOptions(&tt.cfg), tt.want)
		})
	}
}

func TestInitializeComponents(t *testing.T) {
	cfg := &config.Config{
		APIID:       1,
		APIHash:     "hash",
		BridgeAddr:  "tcp://127.0.0.1:7000",
		Host:        "127.0.0.1",
		Port:        "0",
		Env:         "production",
		CORSOrigins: []string{"*"},
	}

	c, err := initializeComponents(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", c.server.Addr)
	assert.NotNil(t, c.server.Handler)
	assert.Equal(t, 0, c.registry.Len())
	assert.False(t, c.sweeper.IsRunning())

	cfg.BridgeAddr = "ftp://nowhere"
	_, err = initializeComponents(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), version))
}
