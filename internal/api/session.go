package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/nerrad567/storefront-auth/internal/auth"
)

// TokenSource is one place a token may be presented.
type TokenSource int

const (
	SourcePreAuthCookie TokenSource = iota
	SourceBearer
	SourceAccessCookie
	SourceRefreshCookie
)

// Default extraction orders. The pre-auth cookie comes first so one gate
// serves both mid-registration and fully authenticated routes.
var (
	defaultSources = []TokenSource{SourcePreAuthCookie, SourceBearer, SourceAccessCookie}
	refreshSources = []TokenSource{SourceRefreshCookie, SourceBearer}
)

// Gate describes the checks authorize applies before a handler runs.
type Gate struct {
	// Role is compared with the token's role when CheckPermission is set.
	Role            auth.Role
	CheckPermission bool

	// LoadPrincipal resolves the principal from the role's store.
	LoadPrincipal bool

	// Accept lists the token classes this gate admits. Empty means access only.
	Accept []auth.TokenKind

	// Sources is the extraction order. Empty means defaultSources.
	Sources []TokenSource
}

// Session is what a successful gate attaches to the request context.
type Session struct {
	Token     string
	Claims    *auth.Claims
	Role      auth.Role
	Principal *auth.Principal // nil unless the gate loads it
}

const ctxKeySession contextKey = "session"

// SessionFrom returns the session attached by authorize.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKeySession).(*Session)
	return s, ok
}

// authorize builds the middleware for g. Every failure before the role
// check is 401 with the same body, so the cause (missing, expired, forged,
// wrong class, unknown role, deleted principal) is never revealed.
func (s *Server) authorize(g Gate) func(http.Handler) http.Handler {
	accept := g.Accept
	if len(accept) == 0 {
		accept = []auth.TokenKind{auth.TokenAccess}
	}
	sources := g.Sources
	if len(sources) == 0 {
		sources = defaultSources
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r, sources)
			if raw == "" {
				writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}

			claims, err := s.auth.Tokens().Verify(raw)
			if err != nil {
				s.logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}
			if !slices.Contains(accept, claims.Kind) {
				writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}

			role, err := auth.ParseRole(string(claims.Role))
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}

			if g.CheckPermission && role != g.Role {
				writeFailure(w, http.StatusForbidden, msgForbidden, nil)
				return
			}

			sess := &Session{Token: raw, Claims: claims, Role: role}
			if g.LoadPrincipal {
				p, err := s.auth.Resolve(r.Context(), role, claims.Email)
				if errors.Is(err, auth.ErrNotFound) {
					writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
					return
				}
				if err != nil {
					s.writeError(w, r, role, err)
					return
				}
				sess.Principal = p
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken returns the first non-empty token found in sources.
func extractToken(r *http.Request, sources []TokenSource) string {
	for _, src := range sources {
		var tok string
		switch src {
		case SourcePreAuthCookie:
			tok = cookieValue(r, cookiePreAuth)
		case SourceAccessCookie:
			tok = cookieValue(r, cookieAccess)
		case SourceRefreshCookie:
			tok = cookieValue(r, cookieRefresh)
		case SourceBearer:
			tok = bearerToken(r)
		}
		if tok != "" {
			return tok
		}
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("Bearer "):])
}
