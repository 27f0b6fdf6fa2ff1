// Package llm calls the chat-completions model endpoint and classifies its
// responses. The caller needs raw status codes and error-body fields to sort
// failures into the stage error taxonomy, so this is a plain HTTP client
// behind the shared retry policy rather than a vendor SDK.
package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/httpretry"
	"courtside/internal/logger"
)

// Message is one chat message in a model request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ClassifiedError is a model-call failure sorted into the stage taxonomy:
// http_<code>, the provider's error message, no_choices, or
// insufficient_facts. None of these produce a take.
type ClassifiedError struct {
	Kind   string
	Detail string
}

func (e *ClassifiedError) Error() string {
	if e.Detail == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Detail
}

// Client generates take text via the configured endpoint.
type Client struct {
	cfg  config.Takes
	http *httpretry.Client
}

// New creates a model client. A missing API key is fatal: no partial output
// is meaningful without credentials.
func New(cfg config.Takes, httpClient *httpretry.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model API key is required (set COURTSIDE_TAKES_API_KEY or takes.api_key)")
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// Model returns the configured model name, for envelope metadata.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate issues one model call and returns the take body. Rate limiting
// (429) is retried twice with a fixed backoff; every other failure mode is
// classified and returned for the stage to record.
func (c *Client) Generate(system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
	}
	if c.cfg.Referer != "" {
		headers["HTTP-Referer"] = c.cfg.Referer
	}
	if c.cfg.Title != "" {
		headers["X-Title"] = c.cfg.Title
	}

	resp, err := c.http.Do(httpretry.Request{
		Method:  http.MethodPost,
		URL:     c.cfg.APIURL,
		Headers: headers,
		Body:    payload,
	}, httpretry.Policy{
		Timeout:       c.cfg.Timeout,
		MaxRetries:    2,
		RetryStatuses: httpretry.Statuses(http.StatusTooManyRequests),
		Strategy:      httpretry.StrategyFixed,
		BaseDelay:     5 * time.Second,
	})
	if err != nil {
		return "", &ClassifiedError{Kind: "request_error", Detail: err.Error()}
	}

	body := httpretry.ReadBody(resp)
	if resp.StatusCode != http.StatusOK {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			logger.Warn("model endpoint sent Retry-After", "retry_after", retryAfter)
		}
		return "", &ClassifiedError{
			Kind:   fmt.Sprintf("http_%d", resp.StatusCode),
			Detail: truncate(string(body), 300),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ClassifiedError{Kind: "invalid_response", Detail: err.Error()}
	}
	if parsed.Error != nil {
		message := parsed.Error.Message
		if message == "" {
			message = "unknown_error"
		}
		return "", &ClassifiedError{Kind: message}
	}
	if len(parsed.Choices) == 0 {
		return "", &ClassifiedError{Kind: "no_choices"}
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" || strings.HasPrefix(strings.ToUpper(content), "INSUFFICIENT FACTS") {
		return "", &ClassifiedError{Kind: "insufficient_facts"}
	}
	return content, nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
