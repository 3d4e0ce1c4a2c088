package sqlite

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
	var (
		t                         domain.RefreshToken
		expires, created, updated int64
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &expires, &t.Revoked, &created, &updated); err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromUnix(expires)
	t.CreatedAt = fromUnix(created)
	t.UpdatedAt = fromUnix(updated)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, toUnix(t.ExpiresAt), t.Revoked,
		toUnix(t.CreatedAt), toUnix(t.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.q.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash))
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ? AND revoked = 0`,
		toUnix(now), hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *refreshTokensRepo) ListRefreshTokensByUser(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
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
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE user_id = ? AND revoked = 0`,
		toUnix(now), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) DeleteRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, toUnix(t))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) CountRefreshTokens(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens`)
}

func (r *refreshTokensRepo) CountRefreshTokensExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE expires_at < ?`, toUnix(t))
}

func (r *refreshTokensRepo) CountRevokedRefreshTokens(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE revoked = 1`)
}

func (r *refreshTokensRepo) CountActiveRefreshTokens(ctx context.Context, t time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE revoked = 0 AND expires_at >= ?`, toUnix(t))
}

func (r *refreshTokensRepo) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
