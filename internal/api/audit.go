package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/storefront-auth/internal/audit"
	"github.com/nerrad567/storefront-auth/internal/auth"
)

const msgAuditLogs = "Audit Logs"

// handleListAuditLogs returns paginated audit entries with optional filters.
//
// Query parameters:
//   - action: filter by action (login, login_failed, register, ...)
//   - role: filter by principal kind
//   - subject: filter by email
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeSuccess(w, http.StatusOK, msgAuditLogs, &audit.ListResult{
			Logs:  []audit.Entry{},
			Limit: audit.DefaultLimit,
		})
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:  q.Get("action"),
		Role:    q.Get("role"),
		Subject: q.Get("subject"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, auth.RoleSuperAdmin, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgAuditLogs, result)
}
