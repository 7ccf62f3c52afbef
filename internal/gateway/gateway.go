// Package gateway forwards the task frontend's API calls to the Apps Script
// backend. Every route maps onto one fixed backend action; every reply to the
// caller is JSON, whatever the backend sent.
package gateway

import (
	"context"
	"io"
	"net/http"

	"taskbridge/internal/config"
	"taskbridge/internal/logging"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxRequestBody caps inbound JSON bodies; larger bodies are treated as
// unparseable, like any other malformed input.
const maxRequestBody = 1 << 20

// Options wires a Gateway.
type Options struct {
	Forwarder *Forwarder
	Logger    *logging.Logger
	// Metrics enables /metrics when non-nil.
	Metrics *Metrics
	CORS    config.CORSConfig
	// RateLimit is requests/second across all action routes; 0 disables.
	RateLimit float64
	RateBurst int
}

// Gateway is the HTTP front of the forwarder.
type Gateway struct {
	fwd       *Forwarder
	metrics   *Metrics
	cors      *cors
	limiter   *rate.Limiter
	logger    *zap.Logger
	accessLog *zap.Logger
}

// New builds a Gateway from opts. Forwarder is required.
func New(opts Options) *Gateway {
	return &Gateway{
		fwd:       opts.Forwarder,
		metrics:   opts.Metrics,
		cors:      newCORS(opts.CORS),
		limiter:   newLimiter(opts.RateLimit, opts.RateBurst),
		logger:    opts.Logger.Get(logging.CategoryGateway),
		accessLog: opts.Logger.Get(logging.CategoryHTTP),
	}
}

// Handler returns the complete inbound handler: routes plus middleware.
func (g *Gateway) Handler() http.Handler {
	router := httprouter.New()
	// Near-miss paths get the JSON 404, not an HTML redirect.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleOPTIONS = true
	router.HandleMethodNotAllowed = true
	router.GlobalOPTIONS = http.HandlerFunc(g.cors.preflight)
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, ErrorResponse(http.StatusNotFound, ErrMsgNotFound))
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, ErrorResponse(http.StatusMethodNotAllowed, ErrMsgMethodNotAllowed))
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		g.logger.Error("handler panic",
			zap.Any("panic", v),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())))
		writeResponse(w, ErrorResponse(http.StatusInternalServerError, ErrMsgInternal))
	}

	for _, route := range Routes {
		router.Handle(route.Method, route.Path, g.limit(g.action(route)))
	}

	router.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeResponse(w, Response{Status: http.StatusOK, Body: []byte(`{"status":"ok"}`)})
	})
	if g.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", g.metrics.Handler())
	}

	return requestID(accessLog(g.accessLog, g.cors.wrap(router)))
}

// action returns the handler for one route: extract, forward once,
// write the normalized reply.
func (g *Gateway) action(route Route) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body []byte
		if route.Source != SourceQuery {
			body = g.readBody(w, r)
		}
		env := Extract(route, r.URL.Query(), body)

		// The backend call is not cancelled when the caller goes away.
		ctx := context.WithoutCancel(r.Context())
		resp := g.fwd.Call(ctx, route.Method, env)

		g.logger.Debug("forwarded",
			zap.String("path", route.Path),
			zap.String("action", string(route.Action)),
			zap.Int("status", resp.Status),
			zap.String("request_id", RequestIDFromContext(ctx)))
		writeResponse(w, resp)
	}
}

func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		g.logger.Warn("discarding unreadable request body",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		return nil
	}
	return body
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
