// Package middleware provides HTTP middleware for the ops API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS returns middleware that handles CORS headers. A "*" entry allows any
// origin but never together with credentials. An empty list disables CORS.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           300,
	})
}
