package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sony/gobreaker"

	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/metrics"
)

const maxBodyBytes = 4 << 20

// Request describes one backend call. Query is encoded with go-querystring
// url tags; Body is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  any
	Body   any
	Header http.Header
}

// Doer is what resource clients need from the pipeline.
type Doer interface {
	Do(ctx context.Context, req Request, out any) error
}

type Options struct {
	BaseURL string
	Prefix  string
	Timeout time.Duration

	// HTTPClient overrides the default pooled client.
	HTTPClient *http.Client
	// TripAfter is the number of consecutive failures that opens the breaker.
	TripAfter uint32
}

// Client talks to the pharmacy API without any session. Session wraps it to
// add bearer tokens and refresh handling.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 10
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	trip := opts.TripAfter
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pharmacy-api",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var he *HTTPError
			return errors.As(err, &he) && he.Status < http.StatusInternalServerError
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/") + "/" + strings.Trim(opts.Prefix, "/"),
		httpClient: hc,
		breaker:    cb,
	}
}

// Do sends req without touching any session. Used for token issuance and
// registration.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	return c.send(ctx, req, "", out)
}

func (c *Client) url(req Request) (string, error) {
	u := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if req.Query == nil {
		return u, nil
	}
	v, err := query.Values(req.Query)
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}

func (c *Client) send(ctx context.Context, req Request, bearer string, out any) error {
	target, err := c.url(req)
	if err != nil {
		return err
	}

	var payload []byte
	if req.Body != nil {
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	l := logging.FromContext(ctx)
	start := time.Now()

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" && httpReq.Header.Get("Authorization") == "" {
			httpReq.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newHTTPError(req.Method, req.Path, resp.StatusCode, data)
		}
		return data, nil
	})

	status := "error"
	var he *HTTPError
	switch {
	case err == nil:
		status = "2xx"
	case errors.As(err, &he):
		status = strconv.Itoa(he.Status)
	}
	metrics.BackendRequests.WithLabelValues(req.Method, status).Inc()

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			l.Warn("backend_unavailable", "method", req.Method, "path", req.Path, "error", err)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if he != nil {
			l.Debug("backend_request", "method", req.Method, "path", req.Path, "status", he.Status,
				"duration_ms", time.Since(start).Milliseconds())
			return he
		}
		l.Warn("backend_request_failed", "method", req.Method, "path", req.Path, "error", err)
		return err
	}

	l.Debug("backend_request", "method", req.Method, "path", req.Path, "status", status,
		"duration_ms", time.Since(start).Milliseconds())

	data, _ := res.([]byte)
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}
