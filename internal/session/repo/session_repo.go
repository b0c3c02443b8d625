package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/parleyhq/service-social-go/internal/session/entity"
)

// SessionRepo provides data access for the sessions table using sqlx.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// EnsureTable creates the sessions table if not exists (idempotent).
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id varchar(32) PRIMARY KEY,
  user_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  last_use TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions (user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a session row with last_use = now.
func (r *SessionRepo) Create(ctx context.Context, id, userID string) error {
	const q = `INSERT INTO sessions (id, user_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, q, id, userID)
	return err
}

// Get fetches a session row or sql.ErrNoRows.
func (r *SessionRepo) Get(ctx context.Context, id string) (*entity.Session, error) {
	const q = `SELECT id, user_id, last_use FROM sessions WHERE id = $1`
	var row entity.Session
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Touch bumps last_use to now.
func (r *SessionRepo) Touch(ctx context.Context, id string) error {
	const q = `UPDATE sessions SET last_use = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Delete removes a session row and reports how many rows went away.
func (r *SessionRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAllForUser removes every session owned by a user (bulk invalidation
// on password change or account deletion).
func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
