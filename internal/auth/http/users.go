package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/pkg/authsdk"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
)

type UsersHandler struct {
	Users *service.UserService
}

func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	u, err := h.Users.GetUserByID(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	prof := u.Profile()
	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{
		ID:        prof.ID,
		Username:  prof.Username,
		Email:     prof.Email,
		FirstName: prof.FirstName,
		LastName:  prof.LastName,
		Gender:    prof.Gender,
		Role:      prof.Role,
		HasImage:  prof.HasImage,
		CreatedAt: prof.CreatedAt,
	})
}

func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.Users.DeleteAccount(r.Context(), p.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePutImage takes the raw JPEG as the request body.
func (h *UsersHandler) HandlePutImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, service.MaxProfileImageSize))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "Image exceeds 5 MiB")
			return
		}
		slogx.FromContext(r.Context()).Debug("image upload aborted", "err", err)
		httpx.WriteError(w, r, http.StatusBadRequest, "Malformed request body")
		return
	}

	if err := h.Users.SetProfileImage(r.Context(), p.UserID, data); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UsersHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	obj, err := h.Users.ProfileImage(r.Context(), p.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.Header().Set("Cache-Control", "private, no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
