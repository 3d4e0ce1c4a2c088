package http

import (
	"net/http"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/pkg/authsdk"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
)

type AuthHandler struct {
	Sessions *service.SessionService
}

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

// HandleRegister creates an account and answers 201 with a token pair.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	pair, err := h.Sessions.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Gender:    req.Gender,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tokenResponse(pair))
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	pair, err := h.Sessions.Login(r.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadBody(w, r, err)
		return
	}

	pair, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout revokes every refresh token of the caller. The access token
// stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if _, err := h.Sessions.Logout(r.Context(), p.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sessions, err := h.Sessions.ActiveSessions(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionInfo, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, authsdk.SessionInfo{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
