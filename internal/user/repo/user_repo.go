package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/parleyhq/service-social-go/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
// Uniqueness of username and email is enforced case-insensitively via citext.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id varchar(32) PRIMARY KEY,
  username CITEXT NOT NULL,
  email CITEXT NOT NULL,
  password_hash TEXT NOT NULL,
  verified BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, username, email, password_hash, verified)
	           VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, u.ID, u.Username, u.Email, u.PasswordHash, u.Verified)
	return err
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	const q = `SELECT id, username, email, password_hash, verified, created_at, updated_at
	           FROM users WHERE id = $1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByEmail matches by email, case-insensitive due to citext.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	const q = `SELECT id, username, email, password_hash, verified, created_at, updated_at
	           FROM users WHERE email = $1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByUsername matches by username, case-insensitive due to citext.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	const q = `SELECT id, username, email, password_hash, verified, created_at, updated_at
	           FROM users WHERE username = $1`
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, username); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateEmail sets a new email and clears the verification flag.
// Returns the number of rows updated.
func (r *UserRepo) UpdateEmail(ctx context.Context, id, email string) (int64, error) {
	const q = `UPDATE users SET email = $2, verified = false, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateUsername sets a new username. Returns the number of rows updated.
func (r *UserRepo) UpdateUsername(ctx context.Context, id, username string) (int64, error) {
	const q = `UPDATE users SET username = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdatePassword replaces the credential hash. Returns the number of rows updated.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) (int64, error) {
	const q = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, hash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a user row. Sessions, friend requests and friendship edges
// referencing the user are removed by ON DELETE CASCADE.
func (r *UserRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
