// Package openai is a focused client for Azure OpenAI chat completions
// against a single deployment.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"safety-chatbot/internal/domain"
)

const (
	defaultAPIVersion  = "2024-02-15-preview"
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// chatRequest is the minimal request shape for the Chat Completions
// endpoint. The deployment in the URL selects the model, so no model
// field is sent.
type chatRequest struct {
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a chat-completions client bound to one Azure OpenAI deployment.
type Client struct {
	endpoint    string
	deployment  string
	apiVersion  string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = strings.TrimSpace(version)
	}
}

// WithGenerationBounds overrides the output length cap and sampling
// temperature sent with every completion request.
func WithGenerationBounds(maxTokens int, temperature float64) Option {
	return func(c *Client) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	}
}

// NewClient creates a Client for the given Azure OpenAI resource
// endpoint and chat deployment. The API key is fetched from SSM on the
// first call to Chat and reused for the lifetime of the process.
func NewClient(endpoint, deployment string, ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("openai: endpoint must not be empty")
	}
	deployment = strings.TrimSpace(deployment)
	if deployment == "" {
		return nil, errors.New("openai: deployment must not be empty")
	}
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		endpoint:    endpoint,
		deployment:  deployment,
		apiVersion:  defaultAPIVersion,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the API key from SSM on the first call and
// returns the cached result on every subsequent call.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchKeyFromParamStore(ctx, c.getter, c.keyParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) keyParameterName() string {
	return c.paramPrefix + "/azure-openai-key"
}

func (c *Client) chatURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
}

// Chat requests a completion for the given messages and returns the raw
// assistant text. Any transport or service failure surfaces as an error;
// there is no retry.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("openai: messages must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := c.chatURL()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch key from paramstore: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("openai: API key is empty")
	}
	return raw, nil
}
