// Package server provides the HTTP receiver for the federated search
// node: it translates inbound HTTP requests into calls on cache,
// fanout, and the wire codec, and renders either native XML or HTML.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/snipdex-net/snipdex/cache"
	"github.com/snipdex-net/snipdex/config"
	"github.com/snipdex-net/snipdex/fanout"
)

// New creates a configured HTTP server with all routes.
func New(
	cfg *config.Config,
	c *cache.Cache,
	engine *fanout.Engine,
	state *fanout.State,
	logger *slog.Logger,
) *http.Server {
	h := NewHandler(cfg, c, engine, state, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(RequestLogger(logger))
	r.Use(ExposureGate(cfg))

	r.Get("/", h.HandleRootRedirect)
	r.Get("/snipdex", h.HandleRootRedirect)
	r.Get("/snipdex/", h.HandleSearch)
	r.Post("/snipdex/", h.HandlePitch)
	r.Get("/snipdex/source/{pid}", h.HandlePeerDetail)
	r.Get("/snipdex/*", h.HandleStatic)

	return &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Node.Port),
		Handler: r,
	}
}

type requestIDKey struct{}

// requestID tags every inbound request with a UUID for log correlation,
// reading from google/uuid rather than chi's own sequential request-id
// middleware, and makes it available to handlers via RequestIDFromContext.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestIDFromContext returns the UUID requestID attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
