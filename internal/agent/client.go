// Package agent runs the commercial analysis and partner matching steps
// against an external agent completion API.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/util"
)

// ErrNoAPIKey is returned when the agent API key is not configured
var ErrNoAPIKey = errors.New("agent API key not configured")

// defaultTemperature is used by both agent steps
const defaultTemperature = 0.3

// Completer runs one agent completion and returns the response content
type Completer interface {
	Complete(ctx context.Context, req CompleteRequest) (string, error)
}

// CompleteRequest is the body of POST /agents/complete
type CompleteRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completeResponse struct {
	Content string `json:"content"`
}

// StatusError is a non-200 answer from the agent API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent API returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the agent completion endpoint
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a client from configuration
func NewClient(cfg model.AgentConfig, httpCfg model.HTTPConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("agent base URL not configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: util.NewTransport(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
		},
	}, nil
}

// Complete posts the prompt and returns the content field of the answer.
// An empty model in req uses the configured one.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agents/complete", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: httpResp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var resp completeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Content == "" {
		return "{}", nil
	}
	return resp.Content, nil
}

// MaskKey shows the first eight characters of a key for logs
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}
