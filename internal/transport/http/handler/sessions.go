package handler

import (
	"net/http"

	"github.com/hr-workforce-api/internal/application/session"
	"github.com/hr-workforce-api/internal/transport/http/middleware"
)

// SessionHandler exposes session introspection.
type SessionHandler struct {
	svc *session.Service
}

func NewSessionHandler(svc *session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// GetCurrent resolves the caller's session snapshot from the fast path.
func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.SessionID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	snap, err := h.svc.Validate(r.Context(), claims.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
