package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
)

// PrincipalResolver turns the subject of a verified access token back into
// a user. It only reads.
type PrincipalResolver struct {
	Store store.Store
}

// ResolvePrincipal returns ErrUnauthorized when the subject no longer exists,
// for example after account deletion. Other errors are passed through.
func (r *PrincipalResolver) ResolvePrincipal(ctx context.Context, userID string) (domain.User, error) {
	u, err := r.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUnauthorized
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
