package gateway

import (
	"context"
	"net/http"
	"time"

	"taskbridge/internal/config"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID reuses a caller-provided id when it looks sane, otherwise
// mints a UUID, and echoes it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", RequestIDFromContext(r.Context())))
	})
}

// cors applies the configured origin policy to every response and answers
// preflight requests.
type cors struct {
	anyOrigin bool
	allowed   map[string]bool
}

func newCORS(cfg config.CORSConfig) *cors {
	c := &cors{anyOrigin: cfg.AllowsAnyOrigin(), allowed: make(map[string]bool)}
	for _, o := range cfg.AllowedOrigins {
		c.allowed[o] = true
	}
	return c
}

func (c *cors) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.setHeaders(w.Header(), r.Header.Get("Origin"))
		next.ServeHTTP(w, r)
	})
}

func (c *cors) setHeaders(h http.Header, origin string) {
	switch {
	case c.anyOrigin:
		h.Set("Access-Control-Allow-Origin", "*")
	case origin != "" && c.allowed[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
}

// preflight is installed as the router's GlobalOPTIONS handler. The router
// has already set the Allow header for the matched path.
func (c *cors) preflight(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Access-Control-Request-Method") != "" {
		h := w.Header()
		methods := h.Get("Allow")
		if methods == "" {
			methods = "GET, POST, OPTIONS"
		}
		h.Set("Access-Control-Allow-Methods", methods)
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		h.Set("Access-Control-Max-Age", "600")
		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")
	}
	w.WriteHeader(http.StatusNoContent)
}

// limit rejects action requests over the process-wide budget with a JSON
// 429 so that callers still only ever see JSON.
func (g *Gateway) limit(next httprouter.Handle) httprouter.Handle {
	if g.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if !g.limiter.Allow() {
			g.metrics.rateLimited()
			w.Header().Set("Retry-After", "1")
			writeResponse(w, ErrorResponse(http.StatusTooManyRequests, ErrMsgRateLimited))
			return
		}
		next(w, r, p)
	}
}

func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
