package http

import (
	"net/http"

	"github.com/atinyakov/SealKeeper/internal/middleware"
	"github.com/atinyakov/SealKeeper/internal/ratelimit"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the optional pieces of the router.
type RouterOptions struct {
	// Limiter throttles /verify and /recover per transport peer IP. Forwarding
	// headers are ignored. Nil disables it.
	Limiter *ratelimit.KeyedLimiter
	// Metrics is served at GET /metrics when set.
	Metrics http.Handler
	// AllowedOrigins lists CORS origins. Empty means "*".
	AllowedOrigins []string
}

// NewRouter constructs the HTTP handler serving the SealKeeper API.
//
// Routes:
//
//	GET  /         → recordHandler.Read
//	POST /         → recordHandler.Write
//	POST /verify   → recordHandler.Verify  (rate limited)
//	POST /recover  → recordHandler.Recover (rate limited)
//	GET  /metrics  → opts.Metrics
//
// Middleware chain (applied in order):
//  1. WithRequestLogging(logger)
//  2. CORS
//  3. AllowContentType("application/json") for the API routes
//  4. RateLimit(opts.Limiter) for /verify and /recover
func NewRouter(recordHandler *RecordHandler, logger *zap.Logger, opts RouterOptions) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.WithRequestLogging(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		// Only allow requests with Content-Type: application/json
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Get("/", recordHandler.Read)
		r.Post("/", recordHandler.Write)

		// Secret guesses are throttled per client
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.Limiter))
			r.Post("/verify", recordHandler.Verify)
			r.Post("/recover", recordHandler.Recover)
		})
	})

	return r
}
