package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/dukapay-backend/api/responses"
	"github.com/angelmondragon/dukapay-backend/pkg/config"
)

// CORS applies the storefront origin policy to the customer API. Webhooks are
// server-to-server and are mounted outside it.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", responses.RequestIDHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	}).Handler
}
