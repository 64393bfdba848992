package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/tgpulse/internal/metrics"
	"github.com/Veraticus/tgpulse/internal/session"
)

const (
	// DefaultBaseURL is the Chatbase API root.
	DefaultBaseURL = "https://www.chatbase.co/api/v1"

	// DefaultTimeout bounds a single reply request.
	DefaultTimeout = 30 * time.Second

	// temperature is sent with every request.
	temperature = 0.7

	// maxErrorBody caps how much of an error response is logged.
	maxErrorBody = 512
)

// ChatbaseConfig holds the Chatbase credentials.
type ChatbaseConfig struct {
	APIKey    string
	ChatbotID string
	BaseURL   string
	Timeout   time.Duration
}

// Configured reports whether both credentials are present.
func (c ChatbaseConfig) Configured() bool {
	return c.APIKey != "" && c.ChatbotID != ""
}

// ChatbaseClient implements Relay against the Chatbase chat endpoint.
type ChatbaseClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     ChatbaseConfig
}

// ChatbaseOption configures the client.
type ChatbaseOption func(*ChatbaseClient)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) ChatbaseOption {
	return func(c *ChatbaseClient) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ChatbaseOption {
	return func(c *ChatbaseClient) {
		c.logger = logger
	}
}

// NewChatbaseClient creates a client. An unconfigured client is valid and
// never replies.
func NewChatbaseClient(config ChatbaseConfig, opts ...ChatbaseOption) *ChatbaseClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	c := &ChatbaseClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(slog.String("component", "relay.chatbase"))
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages       []chatMessage `json:"messages"`
	ChatbotID      string        `json:"chatbotId"`
	ConversationID string        `json:"conversationId,omitempty"`
	Temperature    float64       `json:"temperature"`
	Stream         bool          `json:"stream"`
}

type chatResponse struct {
	Text string `json:"text"`
}

// Reply implements Relay.
func (c *ChatbaseClient) Reply(ctx context.Context, history []session.Turn, conversationID string) (string, bool) {
	if !c.config.Configured() {
		c.logger.DebugContext(ctx, "chatbase not configured, skipping relay")
		return "", false
	}

	start := time.Now()
	text, err := c.chat(ctx, history, conversationID)
	metrics.RelayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.WarnContext(ctx, "chatbase request failed",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
		return "", false
	}
	if text == "" {
		c.logger.DebugContext(ctx, "chatbase returned an empty reply",
			slog.String("conversation_id", conversationID))
		return "", false
	}
	return text, true
}

func (c *ChatbaseClient) chat(ctx context.Context, history []session.Turn, conversationID string) (string, error) {
	messages := make([]chatMessage, 0, len(history))
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}

	body, err := json.Marshal(chatRequest{
		Messages:       messages,
		ChatbotID:      c.config.ChatbotID,
		ConversationID: conversationID,
		Temperature:    temperature,
		Stream:         false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("chatbase returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	return out.Text, nil
}
