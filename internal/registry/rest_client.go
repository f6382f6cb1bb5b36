package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/consent-relay/internal/config"
)

const (
	// recordResource is the downstream resource both operations address.
	recordResource = "MTBFile"

	defaultTimeout      = 5 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the REST client during construction.
type Option func(*RESTClient)

// WithHTTPClient overrides the HTTP client used to reach the registry.
func WithHTTPClient(client HTTPClient) Option {
	return func(c *RESTClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *RESTClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithBodyLimit adjusts how many bytes are retained from a response body.
func WithBodyLimit(limit int64) Option {
	return func(c *RESTClient) {
		if limit > 0 {
			c.maxBodyBytes = limit
		}
	}
}

// RESTClient implements Client against the registry's HTTP API.
type RESTClient struct {
	logger       zerolog.Logger
	baseURL      string
	httpClient   HTTPClient
	timeout      time.Duration
	maxBodyBytes int64
}

// New constructs a registry client from configuration. The base URI is
// required; its absence is a startup-time failure, never a per-message one.
func New(cfg config.RegistryConfig, logger zerolog.Logger, opts ...Option) (*RESTClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURI), "/")
	if base == "" {
		return nil, errors.New("registry client: base URI is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &RESTClient{
		logger:       logger,
		baseURL:      base,
		httpClient:   &http.Client{Timeout: timeout},
		timeout:      timeout,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Submit upserts the full record via POST. The content is sent untouched.
func (c *RESTClient) Submit(ctx context.Context, content []byte) (*Result, error) {
	if len(content) == 0 {
		return nil, errors.New("registry client: content is required")
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, recordResource), content)
}

// Delete removes the subject's record via DELETE keyed by patient id.
func (c *RESTClient) Delete(ctx context.Context, patientID string) (*Result, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, errors.New("registry client: patient id is required")
	}
	target := fmt.Sprintf("%s/%s/%s", c.baseURL, recordResource, url.PathEscape(patientID))
	return c.do(ctx, http.MethodDelete, target, nil)
}

func (c *RESTClient) do(ctx context.Context, method, target string, body []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("registry client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry client: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		// The exchange is still considered complete; an unreadable body
		// degrades to an empty one, mirroring the composer's behaviour.
		c.logger.Warn().
			Str("method", method).
			Int("status_code", resp.StatusCode).
			Err(err).
			Msg("registry client: failed to read response body")
		payload = nil
	}

	c.logger.Debug().
		Str("method", method).
		Int("status_code", resp.StatusCode).
		Msg("registry client: exchange completed")

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       string(payload),
	}, nil
}
