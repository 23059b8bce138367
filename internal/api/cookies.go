package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/storefront-auth/internal/auth"
)

// Cookie names for each token class.
const (
	cookieAccess  = "act"
	cookieRefresh = "rft"
	cookiePreAuth = "temp"
)

// cookieNames maps a token class to the cookie that carries it.
var cookieNames = map[auth.TokenKind]string{
	auth.TokenAccess:  cookieAccess,
	auth.TokenRefresh: cookieRefresh,
	auth.TokenPreAuth: cookiePreAuth,
}

// cookiePolicy holds the environment-dependent cookie attributes.
// Development runs over plain HTTP on one origin; production sits behind TLS
// and serves a frontend on another origin, which requires SameSite=None.
type cookiePolicy struct {
	secure   bool
	sameSite http.SameSite
}

func newCookiePolicy(production bool) cookiePolicy {
	if production {
		return cookiePolicy{secure: true, sameSite: http.SameSiteNoneMode}
	}
	return cookiePolicy{secure: false, sameSite: http.SameSiteLaxMode}
}

// set writes an httpOnly cookie carrying the token.
func (p cookiePolicy) set(w http.ResponseWriter, tok auth.IssuedToken, now time.Time) {
	maxAge := int(tok.ExpiresAt.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieNames[tok.Kind],
		Value:    tok.Value,
		Path:     "/",
		Expires:  tok.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: p.sameSite,
	})
}

// clear expires a cookie immediately.
func (p cookiePolicy) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: p.sameSite,
	})
}
