package middleware

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sales-assistant/internal/config"
	"sales-assistant/internal/errors"
	"sales-assistant/internal/observability"
)

// Headers the question handlers set so the access log and the span can name
// the intent that was answered.
const (
	HeaderAnswerIntent = "X-Answer-Intent"
	HeaderAnswerCode   = "X-Answer-Code"
)

const (
	maxRequestIDLen = 128
	visitorIdle     = 3 * time.Minute
)

type Middleware func(http.Handler) http.Handler

func Chain(middlewares ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// RouteClass groups routes that share a rate limit and a log label.
type RouteClass string

const (
	RouteAsk    RouteClass = "ask"
	RouteLookup RouteClass = "lookup"
	RouteAdmin  RouteClass = "admin"
	RouteHealth RouteClass = "health"
	RoutePage   RouteClass = "page"
)

func ClassOf(r *http.Request) RouteClass {
	path := r.URL.Path
	switch {
	case path == "/api/ask" || path == "/sse/ask":
		return RouteAsk
	case strings.HasPrefix(path, "/api/vocabulary/"):
		return RouteLookup
	case strings.HasPrefix(path, "/admin/"):
		return RouteAdmin
	case path == "/health":
		return RouteHealth
	default:
		return RoutePage
	}
}

// TagAnswer records the answered intent, and the reason code when the
// question went unanswered, on the response.
func TagAnswer(w http.ResponseWriter, intent, code string) {
	if intent != "" {
		w.Header().Set(HeaderAnswerIntent, intent)
	}
	if code != "" {
		w.Header().Set(HeaderAnswerCode, code)
	}
}

// RequestID keeps a caller supplied X-Request-ID when it is short printable
// ASCII and generates one otherwise.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if !validRequestID(requestID) {
				requestID = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := observability.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= ' ' || id[i] > '~' {
			return false
		}
	}
	return true
}

// Logger writes one access line per request. Health checks log at debug.
func Logger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			class := ClassOf(r)
			attrs := []any{
				"route", class,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"bytes", wrapped.written,
				"duration", time.Since(start),
				"request_id", observability.GetRequestID(r.Context()),
			}
			if intent := wrapped.Header().Get(HeaderAnswerIntent); intent != "" {
				attrs = append(attrs, "intent", intent)
			}
			if code := wrapped.Header().Get(HeaderAnswerCode); code != "" {
				attrs = append(attrs, "answer_code", code)
			}

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			case class == RouteHealth:
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request completed", attrs...)
		})
	}
}

func Tracing(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path))
			defer span.End(logger)

			span.SetTag("request_id", observability.GetRequestID(ctx))
			span.SetTag("route", string(ClassOf(r)))
			span.SetTag("http.method", r.Method)

			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetTag("http.status_code", strconv.Itoa(wrapped.statusCode))
			if intent := wrapped.Header().Get(HeaderAnswerIntent); intent != "" {
				span.SetTag("intent", intent)
			}
			if wrapped.statusCode >= 400 {
				span.SetError(fmt.Errorf("HTTP %d", wrapped.statusCode))
			}
		})
	}
}

func CORS(config config.SecurityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if isAllowedOrigin(origin, config.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func SecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// The ask page loads datastar from jsDelivr; datastar evaluates
			// its data-* expressions, which needs unsafe-eval.
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-eval' https://cdn.jsdelivr.net; style-src 'self' 'unsafe-inline'; connect-src 'self'")

			next.ServeHTTP(w, r)
		})
	}
}

type limit struct {
	rps   rate.Limit
	burst int
}

type visitorKey struct {
	class RouteClass
	ip    string
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client IP and route class. Questions,
// lookups and pages share the question limits; admin routes have their own;
// health checks are not limited.
type RateLimiter struct {
	enabled bool
	limits  map[RouteClass]limit
	now     func() time.Time

	mu        sync.Mutex
	visitors  map[visitorKey]*visitor
	lastSweep time.Time
}

func NewRateLimiter(cfg config.SecurityConfig) *RateLimiter {
	question := limit{rps: rate.Limit(cfg.RateLimitRPS), burst: cfg.RateLimitBurst}
	admin := limit{rps: rate.Limit(cfg.AdminRateLimitRPS), burst: cfg.AdminRateLimitBurst}
	if admin.rps <= 0 || admin.burst <= 0 {
		admin = question
	}
	return &RateLimiter{
		enabled: cfg.EnableRateLimit,
		limits: map[RouteClass]limit{
			RouteAsk:    question,
			RouteLookup: question,
			RoutePage:   question,
			RouteAdmin:  admin,
		},
		now:      time.Now,
		visitors: make(map[visitorKey]*visitor),
	}
}

// Allow reports whether ip may make another request of the given class.
func (rl *RateLimiter) Allow(class RouteClass, ip string) bool {
	if !rl.enabled {
		return true
	}
	l, limited := rl.limits[class]
	if !limited {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	key := visitorKey{class: class, ip: ip}
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep forgets visitors idle for longer than visitorIdle. It runs at most
// once per visitorIdle.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < visitorIdle {
		return
	}
	rl.lastSweep = now
	for k, v := range rl.visitors {
		if now.Sub(v.lastSeen) > visitorIdle {
			delete(rl.visitors, k)
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func RateLimit(limiter *RateLimiter, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			class := ClassOf(r)

			if !limiter.Allow(class, ip) {
				requestID := observability.GetRequestID(r.Context())
				logger.Warn("rate limit exceeded",
					"route", class,
					"ip", ip,
					"request_id", requestID,
				)
				w.Header().Set("Retry-After", "1")
				errors.WriteError(w, logger, errors.RateLimit("Too many requests"), requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TrustedProxy drops forwarding headers unless the direct peer is a trusted
// proxy, so getClientIP only believes them from one.
func TrustedProxy(config config.SecurityConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isTrustedProxy(r.RemoteAddr, config.TrustedProxies) {
				r.Header.Del("X-Forwarded-For")
				r.Header.Del("X-Real-IP")
				r.Header.Del("X-Forwarded-Proto")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminToken guards maintenance endpoints. An empty token leaves them open,
// which is only suitable for local use.
func AdminToken(token string, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			given := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				requestID := observability.GetRequestID(r.Context())
				logger.Warn("admin request rejected",
					"path", r.URL.Path,
					"request_id", requestID,
				)
				errors.WriteError(w, logger, errors.Forbidden("Admin token required"), requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := observability.GetRequestID(r.Context())

					logger.Error("panic recovered",
						"error", err,
						"route", ClassOf(r),
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
					)

					errors.WriteError(w, logger, errors.Internal("An unexpected error occurred"), requestID)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func wrap(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Flush keeps SSE responses streaming through the wrapper.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, allowedOrigin := range allowed {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

func isTrustedProxy(remoteAddr string, trusted []string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	for _, trustedIP := range trusted {
		if trustedIP == host {
			return true
		}
	}
	return false
}
