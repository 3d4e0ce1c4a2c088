package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aussiebroadwan/kanban/internal/auth/domain"
	"github.com/aussiebroadwan/kanban/internal/auth/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStoreFromDB(db), mock
}

func TestCreateUser_UniqueViolation(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := st.Users().CreateUser(context.Background(), domain.User{ID: "u1", Username: "alice"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_OtherErrorsPassThrough(t *testing.T) {
	st, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO users").WillReturnError(boom)

	err := st.Users().CreateUser(context.Background(), domain.User{ID: "u1"})
	require.ErrorIs(t, err, boom)
}

func TestRevokeRefreshToken_Conditional(t *testing.T) {
	st, mock := newMock(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE .* AND revoked = FALSE`).
		WithArgs(now, "hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE .* AND revoked = FALSE`).
		WithArgs(now, "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(context.Background(), "hash", now))
	require.ErrorIs(t, st.RefreshTokens().RevokeRefreshToken(context.Background(), "hash", now), store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery("SELECT .* FROM users WHERE id").WillReturnError(sql.ErrNoRows)

	_, err := st.Users().GetUserByID(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteExpired_ReturnsCount(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < \$1`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.RefreshTokens().DeleteRefreshTokensExpiredBefore(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := st.WithTx(context.Background(), func(store.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Commits(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.Users().DeleteUser(context.Background(), "u1")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
