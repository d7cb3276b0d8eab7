package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/biscicol/bcid/internal/api/auth"
	"github.com/biscicol/bcid/internal/api/expeditions"
	"github.com/biscicol/bcid/internal/api/middleware"
	"github.com/biscicol/bcid/internal/api/projects"
	"github.com/biscicol/bcid/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	projectHandler := projects.NewHandler(s.projects)
	expeditionHandler := expeditions.NewHandler(s.expeditions, s.resolver)
	userHandler := users.NewHandler(s.storage)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public, IP rate limited)
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(s.storage, jwtService)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/login", authHandler.Login)
			})
		})

		// Public resolution endpoint
		r.Get("/resolve", expeditionHandler.Resolve)

		// User routes (protected)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))

			r.Get("/me", userHandler.Me)
			r.Put("/me/password", userHandler.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetByID)
				r.Put("/", userHandler.Update)
			})
		})

		// Project routes
		r.Route("/projects", func(r chi.Router) {
			// Listing is public but enriched for authenticated callers.
			r.Group(func(r chi.Router) {
				r.Use(middleware.OptionalJWTAuth(jwtService))
				r.Get("/", projectHandler.List)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))

				r.Use(middleware.RequireCanWrite)
				r.Post("/", projectHandler.Create)
				r.Get("/mine", projectHandler.ListAdmin)
			})

			r.Route("/{projectID}", func(r chi.Router) {
				// Public expedition resolution within a project
				r.Get("/expeditions/{code}", expeditionHandler.GetByCode)
				r.Get("/expeditions/{code}/resources", expeditionHandler.Resources)

				r.Group(func(r chi.Router) {
					r.Use(middleware.JWTAuth(jwtService))

					r.Get("/config", projectHandler.Config)
					r.Put("/config", projectHandler.UpdateConfig)

					r.Get("/members", projectHandler.Members)
					r.Post("/members", projectHandler.AddMember)
					r.Delete("/members/{userID}", projectHandler.RemoveMember)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireCanWrite)
						r.Post("/expeditions", expeditionHandler.Mint)
						r.Post("/expeditions/{code}/resources", expeditionHandler.AttachResource)
					})
				})
			})
		})

		// Expedition routes not scoped to a project
		r.Route("/expeditions", func(r chi.Router) {
			r.Get("/{id}", expeditionHandler.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Get("/", expeditionHandler.ListMine)
			})
		})

		// Resource registration (admin only)
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))
			r.Use(middleware.RequireAdmin)
			r.Post("/resources", projectHandler.CreateResource)
		})
	})

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})

	return r
}
