package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Api-Key"}
)

// corsOptions builds the CORS policy. Credentials are allowed because
// sessions travel in cookies, so origins are always echoed rather than "*".
// An empty allow-list admits every origin outside production and none in it.
func (s *Server) corsOptions() cors.Options {
	methods := s.cfg.CORS.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := s.cfg.CORS.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}

	allowed := s.cfg.CORS.AllowedOrigins
	production := s.app.IsProduction()

	return cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if len(allowed) == 0 {
				return !production
			}
			return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
		},
		AllowedMethods:   methods,
		AllowedHeaders:   headers,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}
