// Package llm talks to a local Ollama instance for combo explanations.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientConfig configures the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API endpoint.
	BaseURL string

	// Model is the model name to use.
	Model string

	// RequestTimeout is the timeout for generation requests.
	RequestTimeout time.Duration

	// RatePerSecond and RateBurst bound outgoing generation requests so a
	// burst of explanation work cannot saturate the local instance.
	RatePerSecond float64
	RateBurst     int
}

// DefaultClientConfig returns sensible defaults for a local instance.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://localhost:11434",
		Model:          "qwen3:8b",
		RequestTimeout: 20 * time.Second,
		RatePerSecond:  2,
		RateBurst:      4,
	}
}

// Client provides rate-limited access to the Ollama generate API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.RWMutex
	available bool
	lastCheck time.Time
}

// generateRequest is the request body for generation.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

// generateResponse is the response from generation.
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type versionResponse struct {
	Version string `json:"version"`
}

// availabilityTTL caches the last availability probe so every generation
// does not pay for a version round trip.
const availabilityTTL = time.Minute

// NewClient creates a rate-limited Ollama client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 1
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RateBurst),
	}
}

// IsAvailable reports whether the instance responded to a recent version
// probe, re-probing when the cached answer is stale.
func (c *Client) IsAvailable(ctx context.Context) bool {
	c.mu.RLock()
	fresh := time.Since(c.lastCheck) < availabilityTTL
	available := c.available
	c.mu.RUnlock()

	if fresh {
		return available
	}

	_, err := c.version(ctx)

	c.mu.Lock()
	c.available = err == nil
	c.lastCheck = time.Now()
	available = c.available
	c.mu.Unlock()

	return available
}

// Generate produces a completion for the prompt, blocking on the rate
// limiter first. The context deadline covers both the wait and the call.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req := &generateRequest{
		Model:  c.config.Model,
		System: system,
		Prompt: prompt,
		Stream: false,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return genResp.Response, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

func (c *Client) version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version check failed with status %d", resp.StatusCode)
	}

	var version versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", err
	}

	return version.Version, nil
}
