package raggate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a failure envelope returned by the gateway. The gateway maps
// domain failures to status codes, so check Status rather than errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("raggate: %d %s", e.Status, e.Message)
}

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	baseURL string
	token   string
	http    *http.Client
}

// WithBaseURL sets the gateway address. Defaults to http://localhost:8080.
func WithBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = strings.TrimRight(url, "/")
	})
}

// WithToken sets the bearer token. Leave unset against an open gateway.
func WithToken(token string) Option {
	return optionFunc(func(c *clientConfig) {
		c.token = token
	})
}

// WithHTTPClient overrides the underlying HTTP client. Streaming queries and
// first-use model pulls outlive a default timeout, so the zero-timeout
// default is deliberate.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.http = hc
	})
}

// Client is the raggate SDK entry point.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a gateway client.
func New(opts ...Option) *Client {
	cfg := &clientConfig{
		baseURL: "http://localhost:8080",
		http:    &http.Client{},
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	return &Client{baseURL: cfg.baseURL, token: cfg.token, http: cfg.http}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// call issues one buffered request and decodes the envelope's data into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("raggate: decode response: %w", err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("raggate: decode data: %w", err)
		}
	}
	return nil
}

// stream issues one request and hands back the live body.
func (c *Client) stream(ctx context.Context, method, path string, body any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		var env envelope
		if derr := json.NewDecoder(resp.Body).Decode(&env); derr == nil && env.Error != "" {
			return nil, &APIError{Status: resp.StatusCode, Message: env.Error}
		}
		return nil, &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("raggate: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("raggate: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("raggate: %s %s: %w", method, path, err)
	}
	return resp, nil
}
