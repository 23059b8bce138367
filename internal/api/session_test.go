package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/storefront-auth/internal/auth"
)

// signRaw signs arbitrary claims with secret, bypassing the issuer's checks.
func signRaw(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tok
}

func TestAuthorize_Rejections(t *testing.T) {
	env := newTestEnv(t)
	access, refresh := env.verifiedCustomer(t, customerEmail)
	exp := env.clock.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		req     request
		status  int
		message string
	}{
		{
			name:    "no token",
			req:     request{method: http.MethodGet, path: "/api/v1/user/customer/profile"},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name:    "garbage bearer",
			req:     request{method: http.MethodGet, path: "/api/v1/user/customer/profile", bearer: "not-a-jwt"},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name: "wrong secret",
			req: request{method: http.MethodGet, path: "/api/v1/user/customer/profile", bearer: signRaw(t, "another-secret-of-sufficient-length!!", jwt.MapClaims{
				"email": customerEmail, "role": "customer", "typ": "access", "exp": exp,
			})},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name: "unknown role",
			req: request{method: http.MethodGet, path: "/api/v1/auth-check", bearer: signRaw(t, testSecret, jwt.MapClaims{
				"email": customerEmail, "role": "vendor", "typ": "access", "exp": exp,
			})},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name: "missing typ",
			req: request{method: http.MethodGet, path: "/api/v1/auth-check", bearer: signRaw(t, testSecret, jwt.MapClaims{
				"email": customerEmail, "role": "customer", "exp": exp,
			})},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name:    "refresh token on access gate",
			req:     request{method: http.MethodGet, path: "/api/v1/user/customer/profile", bearer: refresh.Value},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name:    "access token on refresh gate",
			req:     request{method: http.MethodGet, path: "/api/v1/refresh-token", bearer: access.Value},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name:    "access token on otp gate",
			req:     request{method: http.MethodPost, path: "/api/v1/user/customer/otp-verify", body: `{"otp":123456}`, cookies: []*http.Cookie{access}},
			status:  http.StatusUnauthorized,
			message: msgUnauthorized,
		},
		{
			name:    "customer token on admin profile",
			req:     request{method: http.MethodGet, path: "/api/v1/admin/auth/profile", cookies: []*http.Cookie{access}},
			status:  http.StatusForbidden,
			message: msgForbidden,
		},
		{
			name:    "customer token on retailer profile",
			req:     request{method: http.MethodGet, path: "/api/v1/user/retailer/profile", bearer: access.Value},
			status:  http.StatusForbidden,
			message: msgForbidden,
		},
		{
			name:    "customer token on audit logs",
			req:     request{method: http.MethodGet, path: "/api/v1/super-admin/audit-logs", cookies: []*http.Cookie{access}},
			status:  http.StatusForbidden,
			message: msgForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectResponse(t, env.do(t, tt.req), tt.status, tt.message)
		})
	}
}

func TestAuthorize_ExpiredAccessToken(t *testing.T) {
	env := newTestEnv(t)
	access, refresh := env.verifiedCustomer(t, customerEmail)

	env.clock.Advance(auth.DefaultAccessTTL)
	w := env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/profile", cookies: []*http.Cookie{access}})
	expectResponse(t, w, http.StatusUnauthorized, msgUnauthorized)

	// The refresh token outlives it and mints a working replacement.
	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/refresh-token", cookies: []*http.Cookie{refresh}})
	expectResponse(t, w, http.StatusOK, msgTokenRenewed)
	renewed := mustCookie(t, w, cookieAccess)

	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/profile", cookies: []*http.Cookie{renewed}})
	expectResponse(t, w, http.StatusOK, "Customer Profile")

	env.clock.Advance(auth.DefaultRefreshTTL)
	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/refresh-token", cookies: []*http.Cookie{refresh}})
	expectResponse(t, w, http.StatusUnauthorized, msgUnauthorized)
}

func TestAuthorize_FailuresShareOneBody(t *testing.T) {
	env := newTestEnv(t)
	_, refresh := env.verifiedCustomer(t, customerEmail)

	missing := env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/profile"})
	forged := env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/profile", bearer: "x.y.z"})
	wrongClass := env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/profile", bearer: refresh.Value})

	for _, w := range []*httptest.ResponseRecorder{forged, wrongClass} {
		if w.Code != missing.Code || !bytes.Equal(w.Body.Bytes(), missing.Body.Bytes()) {
			t.Errorf("got %d %s, want %d %s", w.Code, w.Body, missing.Code, missing.Body)
		}
	}
}

func TestAuthorize_PreAuthPrecedence(t *testing.T) {
	env := newTestEnv(t)
	access, _ := env.verifiedCustomer(t, "first@example.com")
	temp := env.registerCustomer(t, "second@example.com")

	// The temp cookie wins over the access cookie, so a fully authenticated
	// route refuses the pair.
	w := env.do(t, request{
		method:  http.MethodGet,
		path:    "/api/v1/user/customer/profile",
		cookies: []*http.Cookie{temp, access},
	})
	expectResponse(t, w, http.StatusUnauthorized, msgUnauthorized)

	// Bearer also beats the access cookie.
	w = env.do(t, request{
		method:  http.MethodGet,
		path:    "/api/v1/user/customer/profile",
		bearer:  access.Value,
		cookies: []*http.Cookie{{Name: cookieAccess, Value: "garbage"}},
	})
	expectResponse(t, w, http.StatusOK, "Customer Profile")
}

func TestAuthorize_DeletedPrincipal(t *testing.T) {
	env := newTestEnv(t)
	temp := env.registerCustomer(t, customerEmail)

	// Logging in before verification purges the record; the outstanding
	// pre-auth token then names nobody.
	w := env.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/user/customer/login",
		body:   `{"email":"` + customerEmail + `","password":"` + customerPassword + `"}`,
	})
	expectResponse(t, w, http.StatusUnauthorized, msgIncomplete)

	w = env.do(t, request{method: http.MethodGet, path: "/api/v1/user/customer/resend-otp", cookies: []*http.Cookie{temp}})
	expectResponse(t, w, http.StatusUnauthorized, msgUnauthorized)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
