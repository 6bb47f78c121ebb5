package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"csv-chat/internal/common/config"
	httpclient "csv-chat/internal/common/http"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
)

var (
	ErrLLMRequestFailed = errors.New("LLM_REQUEST_FAILED")
	ErrLLMTimeout       = errors.New("LLM_TIMEOUT")
	ErrUnauthorized     = errors.New("LLM_UNAUTHORIZED")
	ErrRateLimited      = errors.New("LLM_RATE_LIMITED")
)

// Completer is the single call the planning steps need from a model.
type Completer interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client talks to an OpenAI-compatible /chat/completions endpoint. It never
// retries on its own; the plan coordinator owns the retry budget.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *httpclient.Client
	logger      logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		http:        httpclient.NewClient(config.GetDuration(cfg.Timeout)),
		logger:      log.With(map[string]interface{}{"component": "llm"}),
	}
}

func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt (and system, when non-empty) and returns the first
// choice's content. An empty choice list yields "" without error.
func (c *Client) Complete(ctx context.Context, prompt, system string) (string, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	req := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	start := time.Now()
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/chat/completions", headers, req)
	if err != nil {
		status := "error"
		if isTimeout(ctx, err) {
			status = "timeout"
		}
		metrics.LLMRequestDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
		if status == "timeout" {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}
	metrics.LLMRequestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if err := statusError(resp); err != nil {
		c.logger.Warn("llm request rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   logger.Preview(string(resp.Body)),
		})
		return "", err
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrLLMRequestFailed, err)
	}
	if len(decoded.Choices) == 0 {
		c.logger.Warn("llm response has no choices", nil)
		return "", nil
	}

	content := decoded.Choices[0].Message.Content
	c.logger.Debug("llm response received", map[string]interface{}{
		"model":        c.model,
		"finishReason": decoded.Choices[0].FinishReason,
		"duration":     time.Since(start).Milliseconds(),
		"preview":      logger.Preview(content),
	})
	return content, nil
}

func statusError(resp *httpclient.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := resp.Status
	var apiErr apiErrorResponse
	if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = fmt.Sprintf("%s: %s", resp.Status, apiErr.Error.Message)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s", ErrLLMTimeout, message)
	default:
		return fmt.Errorf("%w: %s", ErrLLMRequestFailed, message)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
