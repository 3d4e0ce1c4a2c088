package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
)

// writeServiceError maps service sentinels onto the error envelope. Unknown
// errors become a generic 500 and are logged with their cause.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.WriteError(w, r, http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, r, http.StatusBadRequest, "Validation failed")
	case errors.Is(err, service.ErrConflict):
		httpx.WriteError(w, r, http.StatusConflict, "Username or email already in use")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, r, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, service.ErrUnauthorized):
		httpx.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "Not found")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func writeBadBody(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Debug("malformed request body", "err", err)
	httpx.WriteError(w, r, http.StatusBadRequest, "Malformed request body")
}

// principal returns the caller set by Authenticate. Routes using it sit
// behind RequireAuth, so a missing principal is a wiring bug.
func principal(w http.ResponseWriter, r *http.Request) (httpx.Principal, bool) {
	p, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
	}
	return p, ok
}
