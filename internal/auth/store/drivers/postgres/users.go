package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/kanban/internal/auth/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, gender, role, image_id, created_at, updated_at`

type usersRepo struct {
	q querier
}

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u       domain.User
		imageID sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Gender, &u.Role,
		&imageID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if imageID.Valid {
		u.ImageID = &imageID.String
	}
	u.CreatedAt = utc(u.CreatedAt)
	u.UpdatedAt = utc(u.UpdatedAt)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *usersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var ok bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&ok)
	return ok, err
}

func (r *usersRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&ok)
	return ok, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var imageID sql.NullString
	if u.ImageID != nil {
		imageID = sql.NullString{String: *u.ImageID, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.Email, u.PasswordHash,
		u.FirstName, u.LastName, u.Gender, u.Role,
		imageID, utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdateImageID(ctx context.Context, userID string, imageID *string, now time.Time) error {
	var v sql.NullString
	if imageID != nil {
		v = sql.NullString{String: *imageID, Valid: true}
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET image_id = $1, updated_at = $2 WHERE id = $3`, v, utc(now), userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}
