package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS allows browser clients on origins to call the API. Credentials travel in
// the Authorization header, never in cookies, so credentialed CORS stays off.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := normalizeOrigins(origins)

	handler := cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		MaxAge:           3600,
		AllowCredentials: false,
	})

	return handler.Handler
}

// normalizeOrigins drops trailing slashes and case from configured origins,
// which browsers never send, and collapses any list containing "*" to "*".
func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	seen := make(map[string]struct{}, len(origins))

	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "" {
			continue
		}
		if origin == "*" {
			if len(origins) > 1 {
				slog.Warn("CORS origin list contains a wildcard; other entries are ignored", "origins", origins)
			}
			return []string{"*"}
		}
		if _, dup := seen[origin]; dup {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}

	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
