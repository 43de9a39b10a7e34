// Package contentsafety is a focused client for the Azure Content
// Safety text analysis endpoint.
package contentsafety

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
	defaultAPIVersion = "2023-10-01"

	// DefaultThreshold is the severity at which a single category makes
	// the whole message unsafe.
	DefaultThreshold = 2
)

// analyzeRequest is the request shape for the text:analyze endpoint.
type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeResponse is the minimal response shape for the text:analyze endpoint.
type analyzeResponse struct {
	CategoriesAnalysis []categoryAnalysis `json:"categoriesAnalysis"`
}

type categoryAnalysis struct {
	Category string `json:"category"`
	Severity int    `json:"severity"`
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
	return fmt.Sprintf("contentsafety: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client analyzes text against the fixed harm categories.
type Client struct {
	endpoint    string
	apiVersion  string
	threshold   int
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

// WithThreshold overrides the severity threshold used to derive verdicts.
func WithThreshold(threshold int) Option {
	return func(c *Client) {
		c.threshold = threshold
	}
}

// NewClient creates a Client for the given Content Safety resource
// endpoint. The subscription key is fetched from SSM on the first call
// to Analyze and reused for the lifetime of the process.
func NewClient(endpoint string, ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("contentsafety: endpoint must not be empty")
	}
	if ps == nil {
		return nil, errors.New("contentsafety: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("contentsafety: parameter prefix must not be empty")
	}
	c := &Client{
		endpoint:    endpoint,
		apiVersion:  defaultAPIVersion,
		threshold:   DefaultThreshold,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the subscription key from SSM on the first call
// and returns the cached result on every subsequent call.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchKeyFromParamStore(ctx, c.getter, c.keyParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) keyParameterName() string {
	return c.paramPrefix + "/content-safety-key"
}

func (c *Client) analyzeURL() string {
	return c.endpoint + "/contentsafety/text:analyze?api-version=" + c.apiVersion
}

// Analyze scores text across the fixed harm categories and derives the
// pass/fail verdict. A single failed call surfaces to the caller; there
// is no retry.
func (c *Client) Analyze(ctx context.Context, text string) (domain.SafetyVerdict, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.SafetyVerdict{}, err
	}

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("contentsafety: marshal request: %w", err)
	}

	url := c.analyzeURL()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("contentsafety: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("contentsafety: request failed: %w", err)
	}

	var payload analyzeResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.SafetyVerdict{}, fmt.Errorf("contentsafety: decode response: %w", decErr)
	}

	severities := make(map[domain.Category]int, len(payload.CategoriesAnalysis))
	for _, ca := range payload.CategoriesAnalysis {
		cat, ok := parseCategory(ca.Category)
		if !ok {
			// Unknown categories from newer API versions are ignored.
			continue
		}
		severities[cat] = ca.Severity
	}
	return domain.NewSafetyVerdict(severities, c.threshold), nil
}

func parseCategory(s string) (domain.Category, bool) {
	switch s {
	case "Hate":
		return domain.CategoryHate, true
	case "SelfHarm":
		return domain.CategorySelfHarm, true
	case "Sexual":
		return domain.CategorySexual, true
	case "Violence":
		return domain.CategoryViolence, true
	}
	return "", false
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
		return "", errors.New("contentsafety: paramstore getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("contentsafety: fetch key from paramstore: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("contentsafety: subscription key is empty")
	}
	return raw, nil
}
