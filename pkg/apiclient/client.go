package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultAPIKeyHeader = "x-api-key"

	maxBodyBytes = 4 << 20
)

// Kind distinguishes the two credential variants
type Kind string

const (
	KindServer Kind = "server"
	KindUser   Kind = "user"
)

// TokenSource returns the user's bearer token for an outbound call
type TokenSource func(ctx context.Context) (string, error)

// Envelope is the backend's standard response wrapper
type Envelope struct {
	Status  *bool           `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// OK reports success. A missing status field counts as success.
func (e *Envelope) OK() bool {
	return e.Status == nil || *e.Status
}

// Client issues JSON calls to the storefront backend. A Client carries
// exactly one credential: the server API key or the user's bearer token.
type Client struct {
	kind       Kind
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
	authorize  func(ctx context.Context, req *http.Request) error
	logger     *logger.Logger
	latency    *telemetry.Histogram
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the default per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeader adds a default header to every call
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithLogger sets the logger for failed calls
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewServer builds the server-to-server variant. Every call carries apiKey in
// header keyHeader.
func NewServer(baseURL, keyHeader, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if keyHeader == "" {
		keyHeader = DefaultAPIKeyHeader
	}

	c := newClient(KindServer, baseURL, opts...)
	c.authorize = func(_ context.Context, req *http.Request) error {
		req.Header.Set(keyHeader, apiKey)
		return nil
	}
	return c, nil
}

// NewUser builds the user variant. Every call carries the bearer token that
// tokens returns for the call's context.
func NewUser(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := newClient(KindUser, baseURL, opts...)
	c.authorize = func(ctx context.Context, req *http.Request) error {
		token, err := tokens(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
	return c
}

func newClient(kind Kind, baseURL string, opts ...Option) *Client {
	c := &Client{
		kind:    kind,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		headers: http.Header{},
		logger:  logger.NewNop(),
	}
	c.headers.Set("Accept", "application/json")

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		// Deadlines come from the per-call context, so http.Client.Timeout stays unset
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	if h, err := telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "storefront_backend_request_duration_seconds",
		Description: "Latency of calls to the storefront backend",
		Unit:        "s",
	}); err == nil {
		c.latency = h
	}

	return c
}

// Kind returns which credential variant this client is
func (c *Client) Kind() Kind {
	return c.kind
}

// CallOption adjusts a single call
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithCallTimeout overrides the client timeout for one call
func WithCallTimeout(d time.Duration) CallOption {
	return func(cc *callConfig) { cc.timeout = d }
}

// Get issues a GET and decodes the envelope's data into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out, opts...)
}

// Post issues a POST with body as JSON and decodes the envelope's data into out
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out, opts...)
}

// Do performs one call. A nil out discards the data payload.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}, opts ...CallOption) error {
	cc := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cc)
	}

	ctx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(ctx, path, 0, start)
		terr := &TransportError{Method: method, Path: path, Err: err}
		c.logger.WithContext(ctx).Warn("backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Bool("timeout", terr.Timeout()),
			zap.Error(err),
		)
		return terr
	}
	defer resp.Body.Close()
	c.observe(ctx, path, resp.StatusCode, start)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode, Path: path}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		c.logger.WithContext(ctx).Warn("backend returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, decodeErr)
	}
	if !env.OK() {
		return &APIError{StatusCode: resp.StatusCode, Path: path, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
	}
	return nil
}

func (c *Client) observe(ctx context.Context, path string, status int, start time.Time) {
	if c.latency == nil {
		return
	}
	c.latency.Record(ctx, time.Since(start).Seconds(),
		telemetry.EndpointAttr(path),
		telemetry.StatusCodeAttr(status),
	)
}
