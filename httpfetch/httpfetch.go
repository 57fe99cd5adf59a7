// Package httpfetch provides the HTTP(S) download transport for web
// locations. It is read-only: web URLs are valid transfer sources, never
// destinations.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout bounds a whole request, connection through body.
	DefaultTimeout = 5 * time.Minute

	// DefaultChunkSize is the streaming copy buffer size.
	DefaultChunkSize = 32 * 1024 * 1024
)

// Config holds HTTP client configuration. Use the functional options with
// New rather than filling this directly.
type Config struct {
	// Timeout bounds a whole request (0 disables)
	Timeout time.Duration

	// ChunkSize is the streaming copy buffer size
	ChunkSize int64

	// DecodeContent enables transparent response decompression. When false
	// the raw (possibly gzip-compressed) body is delivered verbatim.
	DecodeContent bool

	// Headers are sent with every request
	Headers map[string]string

	// HTTPClient overrides the constructed client, for tests
	HTTPClient *http.Client
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithTimeout bounds a whole request, connection through body.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithChunkSize sets the streaming copy buffer size.
func WithChunkSize(chunkSize int64) Option {
	return func(c *Config) {
		if chunkSize > 0 {
			c.ChunkSize = chunkSize
		}
	}
}

// WithDecodeContent toggles transparent response decompression.
func WithDecodeContent(decode bool) Option {
	return func(c *Config) { c.DecodeContent = decode }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Config) { c.Headers = headers }
}

// WithHTTPClient injects a prebuilt HTTP client. Intended for tests; the
// timeout and decompression options are ignored when set.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// Client fetches web resources. Safe for concurrent use.
type Client struct {
	http      *http.Client
	chunkSize int64
	headers   map[string]string
}

// New creates a client with the provided options.
func New(opts ...Option) *Client {
	cfg := &Config{
		Timeout:       DefaultTimeout,
		ChunkSize:     DefaultChunkSize,
		DecodeContent: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DisableCompression = !cfg.DecodeContent
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}
	}
	return &Client{
		http:      httpClient,
		chunkSize: cfg.ChunkSize,
		headers:   cfg.Headers,
	}
}

// Fetch retrieves the resource into memory.
func (c *Client) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	body, _, err := c.open(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read %s: %w", url, err)
	}
	return data, nil
}

// FetchTo streams the resource into w in chunk-sized copies and returns the
// number of bytes written.
func (c *Client) FetchTo(ctx context.Context, url string, w io.Writer, headers map[string]string) (int64, error) {
	body, _, err := c.open(ctx, url, headers)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.CopyBuffer(w, body, make([]byte, c.chunkSize))
	if err != nil {
		return n, fmt.Errorf("httpfetch: read %s: %w", url, err)
	}
	return n, nil
}

// open issues the GET and checks the status. Per-request headers override
// client-level ones on key collisions.
func (c *Client) open(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("httpfetch: build request %s: %w", url, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("httpfetch: get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("httpfetch: get %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, resp.ContentLength, nil
}
