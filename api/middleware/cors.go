package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const localDashboardOrigin = "http://localhost:3000"

// CORS lets the operator dashboard call the API from the configured origins.
// Webhook routes are mounted outside it; providers call server to server.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := dashboardOrigins(origins)
	return cors.Handler(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", idempotencyHeader, OperatorHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, idempotentReplayHeader},
		MaxAge:         300,
	})
}

// dashboardOrigins drops blank entries and trailing slashes, falling back to
// the local dashboard when nothing usable is configured.
func dashboardOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{localDashboardOrigin}
	}
	return out
}
