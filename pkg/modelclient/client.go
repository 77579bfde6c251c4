package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/xhad/distill/internal/types"
	"go.uber.org/zap"
)

const defaultRetryAfter = 5 * time.Second

type ClientConfig struct {
	BaseURL           string
	Model             string
	APIKey            string
	APIKeyEnv         string
	Temperature       float64
	MaxTokens         int
	RequestsPerMinute int
	TokensPerMinute   int
	MaxRetries        int
	RetryBaseDelay    time.Duration
	Timeout           time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint, throttled
// by a sliding-window request and token budget and retrying on throttling or
// transient server errors. One Client instance owns its budget state; it is
// safe to share across concurrent pipeline stages.
type Client struct {
	config  ClientConfig
	hc      *http.Client
	budget  *Budget
	encoder *tiktoken.Tiktoken
	logger  *zap.Logger
	url     string
}

type ClientOption func(*Client)

// WithLogger sets a logger for retry and throttling events.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClock injects a clock into the rate budget. Used by tests.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		c.budget = NewBudget(c.config.RequestsPerMinute, c.config.TokensPerMinute, clock)
	}
}

func NewWithConfig(config ClientConfig, opts ...ClientOption) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.APIKeyEnv == "" {
		config.APIKeyEnv = "OPENAI_API_KEY"
	}
	if config.APIKey == "" {
		config.APIKey = os.Getenv(config.APIKeyEnv)
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing model service API key (set %s)", config.APIKeyEnv)
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 60
	}
	if config.TokensPerMinute == 0 {
		config.TokensPerMinute = 90000
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	c := &Client{
		config: config,
		hc:     &http.Client{Timeout: config.Timeout},
		budget: NewBudget(config.RequestsPerMinute, config.TokensPerMinute, nil),
		logger: zap.NewNop(),
		url:    strings.TrimRight(config.BaseURL, "/") + "/chat/completions",
	}

	// Token estimation feeds the TPM headroom check before a request is
	// sent. If the encoding is unavailable the length heuristic takes over.
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		c.encoder = enc
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one chat-completion call. It blocks for budget headroom
// before sending, honors Retry-After on 429, and backs off exponentially on
// 5xx up to MaxRetries attempts.
func (c *Client) Complete(ctx context.Context, messages []types.Message) (*types.Completion, error) {
	estimate := c.estimateTokens(messages)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.budget.Acquire(ctx, estimate); err != nil {
			return nil, err
		}

		completion, err := c.send(ctx, messages)
		if err == nil {
			c.budget.Record(estimate, completion.Usage.PromptTokens+completion.Usage.CompletionTokens)
			return completion, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return nil, err
		}

		delay := c.retryDelay(err, attempt)
		c.logger.Warn("model request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &FatalError{Message: fmt.Sprintf("retries exhausted: %v", lastErr)}
}

func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}
	return c.config.RetryBaseDelay * (1 << attempt)
}

func (c *Client) send(ctx context.Context, messages []types.Message) (*types.Completion, error) {
	body := chatRequest{
		Model:       c.config.Model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Status: resp.StatusCode, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    parseErrorMessage(data),
		}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode, Message: parseErrorMessage(data)}
	case resp.StatusCode != http.StatusOK:
		return nil, &FatalError{Status: resp.StatusCode, Message: parseErrorMessage(data)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &FatalError{Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &FatalError{Message: "response contained no choices"}
	}

	return &types.Completion{
		Content: parsed.Choices[0].Message.Content,
		Usage: types.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

// estimateTokens counts prompt tokens ahead of sending so the token budget
// can gate the request. Falls back to a characters/4 heuristic when the
// tokenizer is unavailable.
func (c *Client) estimateTokens(messages []types.Message) int {
	total := 0
	for _, m := range messages {
		if c.encoder != nil {
			total += len(c.encoder.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
		total += 4 // per-message framing overhead
	}
	return total
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func parseErrorMessage(data []byte) string {
	var parsed apiError
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
