package server

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/snipdex-net/snipdex/config"
)

// RequestLogger returns middleware that logs all incoming requests at debug level.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("incoming request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remoteAddr", r.RemoteAddr,
				"userAgent", r.UserAgent(),
			)
			next.ServeHTTP(w, r)
		})
	}
}

// ExposureGate enforces cfg.Web.Exposure against the web UI surface
// (static files, the bare / and /snipdex redirects): "disabled" refuses
// every request, "private" only serves loopback callers, and "public"
// serves everyone. The peer wire protocol itself (native XML search,
// registration, pong) is never gated here — exposure controls only
// whether a human can browse this node's page, not whether it
// participates in the peer network.
func ExposureGate(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUISurface(r) {
				next.ServeHTTP(w, r)
				return
			}
			switch cfg.Web.Exposure {
			case config.ExposureDisabled:
				http.NotFound(w, r)
				return
			case config.ExposurePrivate:
				if !isLoopback(r) {
					http.NotFound(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isUISurface reports whether r targets the browsable UI (root
// redirects and static files) as opposed to the peer search endpoint
// at /snipdex/, which is never gated by exposure.
func isUISurface(r *http.Request) bool {
	if r.URL.Path == "/" || r.URL.Path == "/snipdex" {
		return true
	}
	return r.URL.Path != "/snipdex/" && len(r.URL.Path) > len("/snipdex/")
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
