// Package rpc is the HTTP transport to the scripting backend: queries are
// posted as form fields with conditions serialized as XML, and answers come
// back as JSON envelopes.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/ballotbox/internal/metrics"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

const (
	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	tracerName = "github.com/leapstack-labs/ballotbox/internal/rpc"
)

// Form field names read by the backend.
const (
	FieldQuery     = "query"
	FieldCondition = "condition"
	FieldRows      = "rows"
	FieldCount     = "count"
	FieldFormat    = "format"
	FieldStart     = "start"
	FieldDelete    = "delete"
	FieldUUID      = "uuid"
)

// ErrHTTPStatus reports a non-2xx response without an error envelope.
var ErrHTTPStatus = errors.New("rpc: unexpected status")

// Doer runs one request to completion.
type Doer interface {
	Do(ctx context.Context, req core.Request) (core.Result, error)
}

// Config holds client configuration.
type Config struct {
	URL     string
	Timeout time.Duration
	// Format and PageSize fill requests that do not set their own.
	Format   string
	PageSize int

	HTTPClient *http.Client
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Client posts queries to the backend.
type Client struct {
	url      string
	format   string
	pageSize int
	http     *http.Client
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", cfg.URL)
	}

	c := &Client{
		url:      u.String(),
		format:   cfg.Format,
		pageSize: cfg.PageSize,
		http:     cfg.HTTPClient,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// Do posts req and decodes the answer. The result echoes the request's
// query and ticket when the backend leaves them out. An error envelope is
// returned as *ServerError.
func (c *Client) Do(ctx context.Context, req core.Request) (core.Result, error) {
	ctx, span := c.tracer.Start(ctx, "rpc.query", trace.WithAttributes(
		attribute.String("rpc.query", req.Query),
		attribute.Bool("rpc.filtered", req.Condition != nil),
		attribute.Bool("rpc.replace", req.Replace),
	))
	defer span.End()

	start := time.Now()
	res, err := c.do(ctx, req)
	metrics.RequestDuration.WithLabelValues(req.Query).Observe(time.Since(start).Seconds())

	var serverErr *ServerError
	switch {
	case errors.As(err, &serverErr):
		metrics.RequestsTotal.WithLabelValues(req.Query, metrics.StatusServerError).Inc()
		span.SetStatus(codes.Error, serverErr.Message)
		c.logger.Warn("backend reported error",
			slog.String("query", req.Query),
			slog.String("message", serverErr.Message))
	case err != nil:
		metrics.RequestsTotal.WithLabelValues(req.Query, metrics.StatusFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("backend request failed", slog.String("query", req.Query), slog.Any("error", err))
	default:
		metrics.RequestsTotal.WithLabelValues(req.Query, metrics.StatusOK).Inc()
		c.logger.Debug("backend request",
			slog.String("query", req.Query),
			slog.Duration("duration", time.Since(start)))
	}
	return res, err
}

func (c *Client) do(ctx context.Context, req core.Request) (core.Result, error) {
	form, err := c.encode(req)
	if err != nil {
		return core.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return core.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return core.Result{}, fmt.Errorf("query %s: %w", req.Query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return core.Result{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return core.Result{}, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	res, err := DecodeEnvelope(body)
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if serverErr.Query == "" {
			serverErr.Query = req.Query
		}
		if serverErr.Ticket == "" {
			serverErr.Ticket = req.Ticket
		}
		return core.Result{}, serverErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.Result{}, fmt.Errorf("%w: query %s returned %d", ErrHTTPStatus, req.Query, resp.StatusCode)
	}
	if err != nil {
		return core.Result{}, fmt.Errorf("query %s: %w", req.Query, err)
	}

	if res.Query == "" {
		res.Query = req.Query
	}
	if res.Ticket == "" {
		res.Ticket = req.Ticket
	}
	return res, nil
}

func (c *Client) encode(req core.Request) (url.Values, error) {
	form := url.Values{}
	form.Set(FieldQuery, req.Query)

	if req.Condition != nil {
		cond, err := MarshalCondition(*req.Condition)
		if err != nil {
			return nil, err
		}
		form.Set(FieldCondition, cond)
	}
	if len(req.Rows) > 0 {
		rows, err := MarshalRows(req.Rows)
		if err != nil {
			return nil, err
		}
		form.Set(FieldRows, rows)
	}

	count := req.Count
	if count == 0 {
		count = c.pageSize
	}
	if count > 0 {
		form.Set(FieldCount, strconv.Itoa(count))
	}
	if req.Start > 0 {
		form.Set(FieldStart, strconv.Itoa(req.Start))
	}
	format := req.Format
	if format == "" {
		format = c.format
	}
	if format != "" {
		form.Set(FieldFormat, format)
	}
	if req.Replace {
		form.Set(FieldDelete, "1")
	}
	if req.Ticket != "" {
		form.Set(FieldUUID, req.Ticket)
	}
	return form, nil
}
