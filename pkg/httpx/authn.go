package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/kanban/pkg/jwtx"
	"github.com/aussiebroadwan/kanban/pkg/slogx"
)

// ErrUnknownPrincipal is returned by a PrincipalResolver when a verified
// token names a subject that no longer exists.
var ErrUnknownPrincipal = errors.New("httpx: unknown principal")

type TokenVerifier interface {
	Verify(token string) (jwtx.Claims, error)
}

type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID string) (Principal, error)
}

// Authenticate attaches a Principal for requests carrying a valid bearer
// token. Missing or invalid tokens and failed lookups pass through
// unauthenticated so RequireAuth can decide. The only rejection made here
// is a verified token whose subject is gone.
func Authenticate(v TokenVerifier, res PrincipalResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := slogx.FromContext(ctx)

			claims, err := v.Verify(raw)
			if err != nil {
				log.Debug("bearer token rejected", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			p, err := res.ResolvePrincipal(ctx, claims.Subject)
			switch {
			case errors.Is(err, ErrUnknownPrincipal):
				log.Warn("token subject no longer exists", "user_id", claims.Subject, "jti", claims.ID)
				writeBearerChallenge(w, "invalid_token")
				WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			case err != nil:
				log.Error("principal lookup failed", "user_id", claims.Subject, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithPrincipal(ctx, p)
			ctx = slogx.With(ctx, "user_id", p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that Authenticate left without a principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			writeBearerChallenge(w, "")
			WriteError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token from "Authorization: Bearer <t>".
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750 challenge.
func writeBearerChallenge(w http.ResponseWriter, code string) {
	if code == "" {
		w.Header().Set("WWW-Authenticate", `Bearer`)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`"`)
}
