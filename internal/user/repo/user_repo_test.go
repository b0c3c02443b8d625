package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/service-social-go/internal/user/entity"
)

func newMockRepo(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func userRows(u *entity.User) *sqlmock.Rows {
	return sqlmock.
		NewRows([]string{"id", "username", "email", "password_hash", "verified", "created_at", "updated_at"}).
		AddRow(u.ID, u.Username, u.Email, u.PasswordHash, u.Verified, u.CreatedAt, u.UpdatedAt)
}

func TestUserCreate(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs("uid-1", "alice", "alice@example.com", "hash", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &entity.User{
		ID: "uid-1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateUniqueViolationPassesThrough(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	pqErr := &pq.Error{Code: "23505", Constraint: "idx_users_email"}
	mock.ExpectExec("INSERT INTO users").
		WithArgs("uid-1", "alice", "alice@example.com", "hash", false).
		WillReturnError(pqErr)

	err := repo.Create(context.Background(), &entity.User{
		ID: "uid-1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash",
	})
	// the service layer does the constraint-to-domain mapping
	var got *pq.Error
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "idx_users_email", got.Constraint)
}

func TestUserGetByID(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	want := &entity.User{
		ID: "uid-1", Username: "alice", Email: "alice@example.com",
		PasswordHash: "hash", Verified: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	mock.ExpectQuery("SELECT id, username, email, password_hash, verified, created_at, updated_at").
		WithArgs("uid-1").
		WillReturnRows(userRows(want))

	got, err := repo.GetByID(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Username, got.Username)
	assert.True(t, got.Verified)
}

func TestUserGetByEmailMissing(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, username, email, password_hash, verified, created_at, updated_at").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserUpdateEmail(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec("UPDATE users SET email").
		WithArgs("uid-1", "new@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET email").
		WithArgs("missing", "new@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.UpdateEmail(context.Background(), "uid-1", "new@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.UpdateEmail(context.Background(), "missing", "new@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDelete(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM users").
		WithArgs("uid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.Delete(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
