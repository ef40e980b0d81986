package apihttp

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"releasefinder/internal/metrics"
)

// statusRecorder captures what a handler wrote. It passes Flush and Hijack
// through so the chat socket can upgrade behind the middleware chain.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
	started time.Time
}

func record(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK, started: time.Now()}
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

func (rec *statusRecorder) Flush() {
	if flusher, ok := rec.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rec.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rec *statusRecorder) elapsed() time.Duration {
	return time.Since(rec.started)
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := record(w)
		next.ServeHTTP(rec, r)

		attrs := make([]slog.Attr, 0, 8)
		attrs = append(attrs,
			slog.String("method", r.Method),
			slog.String("route", normalizeRoute(r.URL.Path)),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.written),
			slog.Int64("durationMs", rec.elapsed().Milliseconds()),
			slog.String("clientIP", clientIP(r)),
		)
		if user := sessionUser(r.URL.Path); user != "" {
			attrs = append(attrs, slog.String("user", user))
		}
		if q := r.URL.RawQuery; q != "" {
			attrs = append(attrs, slog.String("query", truncate(q, 180)))
		}
		logger.LogAttrs(r.Context(), pickRequestLogLevel(r.URL.Path, rec.status), "http request", attrs...)
	})
}

func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.Error("panic recovered",
				slog.Any("error", recovered),
				slog.String("method", r.Method),
				slog.String("route", normalizeRoute(r.URL.Path)),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := record(w)
		next.ServeHTTP(rec, r)

		route := normalizeRoute(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(rec.elapsed().Seconds())
	})
}

var fixedRoutes = map[string]struct{}{
	"/health":      {},
	"/metrics":     {},
	"/covers":      {},
	"/chat/ws":     {},
	"/admin/clear": {},
}

// normalizeRoute collapses user and release ids so metric labels stay bounded.
func normalizeRoute(path string) string {
	if _, ok := fixedRoutes[path]; ok {
		return path
	}
	head, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	switch head {
	case "providers":
		return "/providers"
	case "releases":
		return "/releases/{id}/tracks"
	case "sessions":
		_, action, ok := strings.Cut(rest, "/")
		if !ok || action == "" {
			return "/sessions"
		}
		action, _, _ = strings.Cut(action, "/")
		return "/sessions/{user}/" + action
	}
	return "/other"
}

// sessionUser extracts {user} from /sessions/{user}/... paths.
func sessionUser(path string) string {
	rest, ok := strings.CutPrefix(path, "/sessions/")
	if !ok {
		return ""
	}
	user, _, _ := strings.Cut(rest, "/")
	return user
}

func pickRequestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/health" || path == "/metrics":
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func clientIP(r *http.Request) string {
	forwarded, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{forwarded, r.Header.Get("X-Real-IP")} {
		if candidate = strings.TrimSpace(candidate); candidate != "" {
			return candidate
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	return addr
}

func truncate(value string, limit int) string {
	switch {
	case limit <= 0 || len(value) <= limit:
		return value
	case limit <= 3:
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

// rateLimitMiddleware applies one token bucket to every route except the
// health and metrics probes. Requests over the limit get 429.
func rateLimitMiddleware(rps float64, burst int, next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health" || r.URL.Path == "/metrics":
		case !limiter.Allow():
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
