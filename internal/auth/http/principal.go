package http

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/kanban/internal/auth/service"
	"github.com/aussiebroadwan/kanban/pkg/httpx"
)

// principalAdapter exposes the service resolver to httpx.Authenticate.
type principalAdapter struct {
	r *service.PrincipalResolver
}

func (a principalAdapter) ResolvePrincipal(ctx context.Context, userID string) (httpx.Principal, error) {
	u, err := a.r.ResolvePrincipal(ctx, userID)
	if errors.Is(err, service.ErrUnauthorized) {
		return httpx.Principal{}, httpx.ErrUnknownPrincipal
	}
	if err != nil {
		return httpx.Principal{}, err
	}
	return httpx.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}
