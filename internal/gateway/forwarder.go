package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"taskbridge/internal/config"
	"taskbridge/internal/logging"

	"go.uber.org/zap"
)

// ForwarderConfig configures the outbound side of the gateway.
type ForwarderConfig struct {
	// URL of the backend web app. Required.
	URL string
	// Timeout bounds each call; zero means 30s.
	Timeout time.Duration
	// MaxBodyBytes caps the response read; zero means unlimited.
	MaxBodyBytes int64
	// LogBodyPrefix is how many characters of each reply are logged.
	LogBodyPrefix int
	// HTTPClient overrides the default pooled client.
	HTTPClient *http.Client
}

// RawResponse is the backend's reply before normalization.
type RawResponse struct {
	Status int
	Body   []byte
}

// ErrBodyTooLarge is returned when a backend reply exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("backend response body too large")

// Forwarder performs the single outbound call for each action.
type Forwarder struct {
	baseURL    *url.URL
	client     *http.Client
	timeout    time.Duration
	maxBody    int64
	bodyPrefix int
	logger     *zap.Logger
	metrics    *Metrics
}

// NewForwarder validates cfg and builds a Forwarder. metrics may be nil.
func NewForwarder(cfg ForwarderConfig, logs *logging.Logger, metrics *Metrics) (*Forwarder, error) {
	if cfg.URL == "" {
		return nil, config.ErrBackendURLRequired
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	return &Forwarder{
		baseURL:    u,
		client:     client,
		timeout:    timeout,
		maxBody:    cfg.MaxBodyBytes,
		bodyPrefix: cfg.LogBodyPrefix,
		logger:     logs.Get(logging.CategoryBackend),
		metrics:    metrics,
	}, nil
}

// Close releases idle pooled connections.
func (f *Forwarder) Close() {
	f.client.CloseIdleConnections()
}

// Call forwards env with the given method and always returns a Response:
// normalized backend output, or the upstream-unreachable envelope when no
// reply was obtained.
func (f *Forwarder) Call(ctx context.Context, method string, env *Envelope) Response {
	done := f.metrics.begin()

	raw, err := f.Forward(ctx, method, env)
	if err != nil {
		f.logger.Error("backend call failed",
			zap.String("action", string(env.Action)),
			zap.String("request_id", RequestIDFromContext(ctx)),
			zap.Error(err))
		resp := Unreachable()
		done(env.Action, resp.Status, outcomeUnreachable)
		return resp
	}

	resp, valid := normalize(raw.Status, raw.Body)
	outcome := outcomeOK
	if !valid {
		outcome = outcomeInvalidJSON
		f.logger.Warn("backend returned non-JSON body",
			zap.String("action", string(env.Action)),
			zap.Int("status", raw.Status),
			zap.String("request_id", RequestIDFromContext(ctx)))
	}
	done(env.Action, resp.Status, outcome)
	return resp
}

// Forward issues exactly one HTTP call. GET encodes env into the query
// string after any query already on the backend URL; POST sends env as JSON.
func (f *Forwarder) Forward(ctx context.Context, method string, env *Envelope) (*RawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, payload, err := f.newRequest(ctx, method, env)
	if err != nil {
		return nil, err
	}

	reqID := RequestIDFromContext(ctx)
	f.logger.Info("forwarding to backend",
		zap.String("method", method),
		zap.String("url", req.URL.String()),
		zap.String("action", string(env.Action)),
		zap.String("request_id", reqID))
	if payload != nil {
		f.logger.Debug("backend payload", zap.ByteString("payload", payload), zap.String("request_id", reqID))
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := f.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	f.logger.Info("backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.Int("bytes", len(body)),
		zap.String("request_id", reqID))
	f.logger.Debug("backend body",
		zap.String("body_prefix", logging.Truncate(string(body), f.bodyPrefix)),
		zap.String("request_id", reqID))

	return &RawResponse{Status: resp.StatusCode, Body: body}, nil
}

func (f *Forwarder) newRequest(ctx context.Context, method string, env *Envelope) (*http.Request, []byte, error) {
	u := *f.baseURL

	switch method {
	case http.MethodGet:
		q := env.EncodeQuery()
		if u.RawQuery != "" {
			q = u.RawQuery + "&" + q
		}
		u.RawQuery = q
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		return req, nil, nil

	case http.MethodPost:
		payload, err := env.MarshalJSON()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, payload, nil

	default:
		return nil, nil, fmt.Errorf("unsupported method %q", method)
	}
}

func (f *Forwarder) readBody(r io.Reader) ([]byte, error) {
	if f.maxBody <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w (limit %d bytes)", ErrBodyTooLarge, f.maxBody)
	}
	return body, nil
}
