package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

var tracer = otel.Tracer("clinicbook.internal.backend")

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// TokenSource supplies the bearer token for authenticated endpoints.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed bearer token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client talks to the clinic backend's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	metrics    *metrics.BookingMetrics
	logger     *logging.Logger
}

// NewClient builds a client for baseURL (e.g. https://host/api/v1).
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithTokenSource attaches the session's token for /user endpoints.
func (c *Client) WithTokenSource(tokens TokenSource) *Client {
	c.tokens = tokens
	return c
}

// WithMetrics records request counts and latency.
func (c *Client) WithMetrics(m *metrics.BookingMetrics) *Client {
	c.metrics = m
	return c
}

// WithHTTPClient overrides the transport (tests).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	name   string
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
	token  string
}

// do executes req and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.Start(ctx, "backend."+req.name)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.method),
		attribute.String("clinicbook.endpoint", req.path),
	)

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reader io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("backend: %s payload: %w", req.name, err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reader)
	if err != nil {
		return fmt.Errorf("backend: %s request: %w", req.name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	token := req.token
	if token == "" && req.auth && c.tokens != nil {
		token = c.tokens.Token()
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveBackend(req.name, 0, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %w", ErrTimeout, req.name, err)
		}
		return fmt.Errorf("%w: %s: %w", ErrNetwork, req.name, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveBackend(req.name, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %w", ErrTimeout, req.name, err)
		}
		return fmt.Errorf("%w: %s read: %w", ErrNetwork, req.name, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, body)
		span.SetStatus(codes.Error, apiErr.Error())
		c.logger.Warn("backend request rejected",
			"endpoint", req.name,
			"status", resp.StatusCode,
			"message", apiErr.Message,
		)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", req.name, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
