package api

import (
	"fmt"
	"net/http"

	"github.com/nerrad567/storefront-auth/internal/auth"
)

// Fixed success messages.
const (
	msgOTPSent       = "Otp send successfully!"
	msgOTPVerified   = "Otp verified successfully!"
	msgOTPResent     = "Otp resend successfully!"
	msgAuthorized    = "Authorized!"
	msgTokenRenewed  = "Access Token Regenerated!"
	fmtRegistered    = "%s registration successfully!"
	fmtLoggedIn      = "%s Login Successfully!"
	fmtLoggedOut     = "%s Logout Successfully!"
	fmtProfileHeader = "%s Profile"
)

// handleRegister creates a principal of the given kind. Admin kinds become
// active immediately; the others receive a pre-auth cookie and an emailed
// code.
func (s *Server) handleRegister(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := auth.NewRegistrationRequest(role)
		if err != nil {
			s.writeError(w, r, role, err)
			return
		}
		if err := decodeJSON(r, req); err != nil {
			s.writeError(w, r, role, err)
			return
		}
		req.Normalize()
		if err := auth.Validate(req); err != nil {
			s.writeError(w, r, role, err)
			return
		}

		res, err := s.auth.Register(r.Context(), role, req.Registration())
		if err != nil {
			s.writeError(w, r, role, err)
			return
		}

		if res.PreAuth != nil {
			s.cookies.set(w, *res.PreAuth, s.now())
			writeSuccess(w, http.StatusCreated, msgOTPSent, nil)
			return
		}
		writeSuccess(w, http.StatusCreated,
			fmt.Sprintf(fmtRegistered, role.DisplayName()), res.Principal.Public(role))
	}
}

// handleVerifyOTP completes a pending registration and starts the session.
func (s *Server) handleVerifyOTP(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || sess.Principal == nil {
			writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
			return
		}

		var req auth.OTPRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, role, err)
			return
		}
		if err := auth.Validate(&req); err != nil {
			s.writeError(w, r, role, err)
			return
		}

		session, err := s.auth.VerifyOTP(r.Context(), role, sess.Principal, req.Code())
		if err != nil {
			s.writeError(w, r, role, err)
			return
		}

		now := s.now()
		s.cookies.clear(w, cookiePreAuth)
		s.cookies.set(w, session.Access, now)
		s.cookies.set(w, session.Refresh, now)
		writeSuccess(w, http.StatusOK, msgOTPVerified, nil)
	}
}

// handleResendOTP issues a new code once the previous one has expired.
func (s *Server) handleResendOTP(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || sess.Principal == nil {
			writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
			return
		}
		if err := s.auth.ResendOTP(r.Context(), role, sess.Principal); err != nil {
			s.writeError(w, r, role, err)
			return
		}
		writeSuccess(w, http.StatusOK, msgOTPResent, nil)
	}
}

// handleLogin authenticates against the role's store and sets the access
// and refresh cookies.
func (s *Server) handleLogin(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, role, err)
			return
		}
		req.Normalize()
		if err := auth.Validate(&req); err != nil {
			s.writeError(w, r, role, err)
			return
		}

		session, p, err := s.auth.Login(r.Context(), role, req.Email, req.Password)
		if err != nil {
			s.writeError(w, r, role, err)
			return
		}

		now := s.now()
		s.cookies.set(w, session.Access, now)
		s.cookies.set(w, session.Refresh, now)
		writeSuccess(w, http.StatusOK, fmt.Sprintf(fmtLoggedIn, role.DisplayName()), p.Public(role))
	}
}

// handleLogout clears the session cookies. It succeeds whether or not a
// session was present.
func (s *Server) handleLogout(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.cookies.clear(w, cookieAccess)
		s.cookies.clear(w, cookieRefresh)
		s.auth.Logout(r.Context(), role, s.presentedEmail(r, role))
		writeSuccess(w, http.StatusOK, fmt.Sprintf(fmtLoggedOut, role.DisplayName()), nil)
	}
}

// presentedEmail returns the subject of a valid access token of role, or ""
// when none was presented.
func (s *Server) presentedEmail(r *http.Request, role auth.Role) string {
	raw := extractToken(r, []TokenSource{SourceBearer, SourceAccessCookie})
	if raw == "" {
		return ""
	}
	claims, err := s.auth.Tokens().Verify(raw)
	if err != nil || claims.Kind != auth.TokenAccess || claims.Role != role {
		return ""
	}
	return claims.Email
}

func (s *Server) handleProfile(role auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFrom(r.Context())
		if !ok || sess.Principal == nil {
			writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
			return
		}
		writeSuccess(w, http.StatusOK,
			fmt.Sprintf(fmtProfileHeader, role.DisplayName()), sess.Principal.Public(role))
	}
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, msgAuthorized, nil)
}

// handleRefresh mints a new access token from the presented refresh token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, msgUnauthorized, nil)
		return
	}

	access, err := s.auth.Refresh(r.Context(), sess.Claims)
	if err != nil {
		s.writeError(w, r, sess.Role, err)
		return
	}

	s.cookies.set(w, access, s.now())
	writeSuccess(w, http.StatusOK, msgTokenRenewed, nil)
}
