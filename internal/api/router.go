package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/metrics"
)

const msgHome = "Assalamu Alaikum World!"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware. The API key gate runs before routing so unknown
	// paths are rejected the same way as known ones.
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(cors.Handler(s.corsOptions()))
	r.Use(s.apiKeyMiddleware)
	r.Use(s.sourceMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(s.handleRouteNotFound)
	r.MethodNotAllowed(s.handleRouteNotFound)

	r.Get("/", s.handleHome)

	if s.metricsCfg.Enabled && s.gatherer != nil {
		r.Handle(s.metricsPath(), metrics.Handler(s.gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Any role, access token only.
		r.With(s.authorize(Gate{LoadPrincipal: true})).Get("/auth-check", s.handleAuthCheck)

		r.Group(func(r chi.Router) {
			r.Use(s.authorize(Gate{
				Accept:  []auth.TokenKind{auth.TokenRefresh},
				Sources: refreshSources,
			}))
			r.Get("/refresh-token", s.handleRefresh)
			r.Post("/refresh-token", s.handleRefresh)
		})

		// Super-admin registration is only reachable through the secret path.
		r.Post("/secret/super-admin/register", s.handleRegister(auth.RoleSuperAdmin))
		r.Route("/super-admin", func(r chi.Router) {
			s.mountSessionRoutes(r, auth.RoleSuperAdmin)
			r.With(s.authorize(s.profileGate(auth.RoleSuperAdmin))).
				Get("/audit-logs", s.handleListAuditLogs)
		})

		r.Route("/admin/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister(auth.RoleAdmin))
			s.mountSessionRoutes(r, auth.RoleAdmin)
		})

		for _, role := range []auth.Role{auth.RoleRetailer, auth.RoleCustomer} {
			r.Route("/user/"+string(role), func(r chi.Router) {
				r.Post("/register", s.handleRegister(role))

				r.Group(func(r chi.Router) {
					r.Use(s.authorize(Gate{
						Role:            role,
						CheckPermission: true,
						LoadPrincipal:   true,
						Accept:          []auth.TokenKind{auth.TokenPreAuth},
					}))
					r.Post("/otp-verify", s.handleVerifyOTP(role))
					r.Get("/resend-otp", s.handleResendOTP(role))
				})

				s.mountSessionRoutes(r, role)
			})
		}
	})

	return r
}

// mountSessionRoutes adds login, logout and profile for role.
func (s *Server) mountSessionRoutes(r chi.Router, role auth.Role) {
	r.Post("/login", s.handleLogin(role))
	r.Post("/logout", s.handleLogout(role))
	r.With(s.authorize(s.profileGate(role))).Get("/profile", s.handleProfile(role))
}

func (s *Server) profileGate(role auth.Role) Gate {
	return Gate{Role: role, CheckPermission: true, LoadPrincipal: true}
}

func (s *Server) metricsPath() string {
	if s.metricsCfg.Path == "" {
		return "/metrics"
	}
	return s.metricsCfg.Path
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, msgHome, nil)
}

func (s *Server) handleRouteNotFound(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusNotFound, msgRouteNotFound, nil)
}
