package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/nerrad567/storefront-auth/internal/auth"
)

// Response is the envelope of every response body.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Messages shared by more than one handler.
const (
	msgInvalidRequest     = "Invalid Request!"
	msgServerError        = "Server Error!"
	msgUnauthorized       = "Unauthorized Request!"
	msgForbidden          = "Forbidden!"
	msgRouteNotFound      = "This route does not exist!"
	msgInvalidAPIKey      = "Unauthorized: Please provide a valid API Key!"
	msgAlreadyVerified    = "This account is already verified!"
	msgInvalidOTP         = "Invalid Otp!"
	msgCooldownActive     = "Please, wait for 2 minutes before resend otp!"
	msgIncomplete         = "Please, complete your registration first!"
	msgInvalidCredentials = "Invalid Credentials!"
	msgInvalidJSONBody    = "request body must be valid JSON!"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeSuccess writes a status=true envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Status: true, Message: message, Data: data})
}

// writeFailure writes a status=false envelope.
func writeFailure(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Status: false, Message: message, Data: data})
}

// errorResponse maps an error to its status code and client message. Only
// known failure kinds get a specific message; everything else is a server
// error whose detail stays in the log.
func errorResponse(role auth.Role, err error) (status int, message string, data any, known bool) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, msgInvalidRequest, verr.Fields, true
	case errors.Is(err, auth.ErrAlreadyExists):
		return http.StatusBadRequest, fmt.Sprintf("This %s already exists!", role.DisplayName()), nil, true
	case errors.Is(err, auth.ErrAlreadyVerified):
		return http.StatusBadRequest, msgAlreadyVerified, nil, true
	case errors.Is(err, auth.ErrInvalidOTP):
		return http.StatusBadRequest, msgInvalidOTP, nil, true
	case errors.Is(err, auth.ErrCooldownActive):
		return http.StatusBadRequest, msgCooldownActive, nil, true
	case errors.Is(err, auth.ErrRegistrationIncomplete):
		return http.StatusUnauthorized, msgIncomplete, nil, true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials, nil, true
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrUnknownRole), errors.Is(err, auth.ErrNotFound):
		return http.StatusUnauthorized, msgUnauthorized, nil, true
	default:
		return http.StatusBadRequest, msgServerError, nil, false
	}
}

// writeError is the single place an error becomes an HTTP response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, role auth.Role, err error) {
	status, message, data, known := errorResponse(role, err)
	if !known {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"role", string(role),
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeFailure(w, status, message, data)
}

// decodeJSON reads the request body into dst. An empty body decodes as {}
// so that validation reports the missing fields. Type mismatches are
// reported per field.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return auth.NewValidationError(typeErr.Field,
			fmt.Sprintf("%s must be %s!", typeErr.Field, jsonKind(typeErr.Type)))
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return auth.NewValidationError("body", "request body is too large!")
	}
	return auth.NewValidationError("body", msgInvalidJSONBody)
}

func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64, reflect.Int32:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	default:
		return "valid"
	}
}
