package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, revoked, created_at, updated_at`

type refreshTokensRepo struct {
	q querier
}

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = utc(t.ExpiresAt)
	t.CreatedAt = utc(t.CreatedAt)
	t.UpdatedAt = utc(t.UpdatedAt)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.TokenHash, utc(t.ExpiresAt), t.Revoked, utc(t.CreatedAt), utc(t.UpdatedAt))
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash))
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, updated_at = $1 WHERE token_hash = $2 AND revoked = FALSE`,
		utc(now), hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *refreshTokensRepo) ListRefreshTokensByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) RevokeAllUserRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, updated_at = $1 WHERE user_id = $2 AND revoked = FALSE`,
		utc(now), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) DeleteRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, utc(t))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) CountRefreshTokens(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens`)
}

func (r *refreshTokensRepo) CountRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE expires_at < $1`, utc(t))
}

func (r *refreshTokensRepo) CountRevokedRefreshTokens(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE revoked`)
}

func (r *refreshTokensRepo) CountActiveRefreshTokens(ctx context.Context, t time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE NOT revoked AND expires_at >= $1`, utc(t))
}

func (r *refreshTokensRepo) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}
