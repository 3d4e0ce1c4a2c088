package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, gender, role, image_id, created_at, updated_at`

type usersRepo struct {
	q querier
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u                domain.User
		imageID          sql.NullString
		created, updated int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Gender, &u.Role,
		&imageID, &created, &updated)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.ImageID = mapNullStringPtr(imageID)
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (r *usersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = ?)`, username)
}

func (r *usersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, email)
}

func (r *usersRepo) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.q.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
		u.FirstName, u.LastName, u.Gender, u.Role,
		mapOptionalString(u.ImageID), toUnix(u.CreatedAt), toUnix(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateImageID(ctx context.Context, userID string, imageID *string, now time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET image_id = ?, updated_at = ? WHERE id = ?`,
		mapOptionalString(imageID), toUnix(now), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// requireRow reports ErrNotFound when a statement touched nothing.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
