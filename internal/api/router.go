package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thiagovictorino/chat-mcp/internal/api/middleware"
	"github.com/thiagovictorino/chat-mcp/internal/chat"
	"github.com/thiagovictorino/chat-mcp/internal/handlers"
)

// NewRouter creates and configures the HTTP router. redisClient may be
// nil, in which case rate limiting is skipped entirely.
func NewRouter(logger zerolog.Logger, svc *chat.Service, st chat.Store, redisClient *redis.Client, rlWhitelist []string) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	// 32KB fits a maximum-length send even when every character is a
	// \uXXXX escape.
	r.Use(middleware.MaxBodySize(32 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (only when Redis is configured)
	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, logger, middleware.RateLimiterConfig{Whitelist: rlWhitelist})
		r.Use(limiter.Middleware)
	}

	// CORS - allow all origins (agents call from anywhere)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Agent-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(svc, st, redisClient)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	r.Route("/channels", func(r chi.Router) {
		r.Post("/", h.CreateChannel)
		r.Get("/", h.ListChannels)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetChannel)
			r.Delete("/", h.DeleteChannel)

			r.Post("/agents", h.JoinChannel)
			r.Get("/agents", h.ListAgents)
			r.Delete("/agents/{agentID}", h.LeaveChannel)

			r.Post("/messages", h.SendMessage)
			r.Get("/messages", h.PeekMessages)
			r.Get("/messages/new", h.GetNewMessages)
			r.Get("/messages/history", h.GetHistory)
			r.Get("/messages/from/{username}", h.GetAgentMessages)

			r.Get("/mentions", h.CheckMentions)
		})
	})

	return r
}
