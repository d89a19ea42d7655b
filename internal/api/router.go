package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/writing-studio/studio/internal/ratelimit"
)

func NewRouter(apiHandler *APIHandler, limiters *ratelimit.Limiters) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(limiters.Auth))
			r.Post("/signup", apiHandler.SignupHandler)
			r.Post("/login", apiHandler.LoginHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)
			r.Use(RateLimit(limiters.General))

			r.Get("/profile", apiHandler.GetProfileHandler)
			r.Put("/profile", apiHandler.UpdateProfileHandler)

			r.With(RateLimit(limiters.AI)).Post("/generate/{kind}", apiHandler.GenerateHandler)

			r.Route("/generations", func(r chi.Router) {
				r.Get("/", apiHandler.ListGenerationsHandler)
				r.Get("/{id}", apiHandler.GetGenerationHandler)
				r.Delete("/{id}", apiHandler.DeleteGenerationHandler)
			})

			r.Route("/worlds", func(r chi.Router) {
				r.With(RateLimit(limiters.AI)).Post("/", apiHandler.CreateWorldHandler)
				r.Get("/", apiHandler.ListWorldsHandler)
				r.Get("/{id}", apiHandler.GetWorldHandler)
				r.With(RateLimit(limiters.AI)).Put("/{id}", apiHandler.UpdateWorldHandler)
				r.Delete("/{id}", apiHandler.DeleteWorldHandler)

				r.With(RateLimit(limiters.AI)).Post("/{id}/query", apiHandler.QueryWorldHandler)

				r.Get("/{id}/embeddings", apiHandler.ListEmbeddingsHandler)
				r.With(RateLimit(limiters.AI)).Post("/{id}/embeddings", apiHandler.ReindexWorldHandler)
				r.Delete("/{id}/embeddings", apiHandler.ClearEmbeddingsHandler)
			})
		})
	})

	return r
}
