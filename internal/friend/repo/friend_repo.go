package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parleyhq/service-social-go/internal/friend/entity"
	userentity "github.com/parleyhq/service-social-go/internal/user/entity"
)

// FriendRepo provides data access for friend requests and friendship edges
// using sqlx. A friendship edge is stored as two directed rows so each
// user's friend list is a plain equality scan.
type FriendRepo struct {
	db *sqlx.DB
}

func NewFriendRepo(db *sqlx.DB) *FriendRepo { return &FriendRepo{db: db} }

// EnsureTable creates the friend_requests and friendships tables if not
// exists (idempotent). The pair index on friend_requests is the true
// enforcement of the one-request-per-unordered-pair invariant; the
// in-process existence check only gives a friendlier error in the common
// case.
func (r *FriendRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS friend_requests (
  id varchar(32) PRIMARY KEY,
  from_user_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  to_user_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  type varchar(16) NOT NULL DEFAULT 'FRIEND',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_friend_requests_pair
  ON friend_requests (LEAST(from_user_id, to_user_id), GREATEST(from_user_id, to_user_id));
CREATE TABLE IF NOT EXISTS friendships (
  user_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  friend_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (user_id, friend_id)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// UserExists reports whether a user row exists.
func (r *FriendRepo) UserExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, `SELECT 1 FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateRequest inserts a directional request row.
func (r *FriendRepo) CreateRequest(ctx context.Context, req *entity.FriendRequest) error {
	const q = `INSERT INTO friend_requests (id, from_user_id, to_user_id, type)
	           VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, req.ID, req.FromUserID, req.ToUserID, req.Type)
	return err
}

// GetRequestByDirection fetches the request from one user to another, exact
// direction, or sql.ErrNoRows.
func (r *FriendRepo) GetRequestByDirection(ctx context.Context, fromID, toID string) (*entity.FriendRequest, error) {
	const q = `SELECT id, from_user_id, to_user_id, type, created_at
	           FROM friend_requests WHERE from_user_id = $1 AND to_user_id = $2`
	var row entity.FriendRequest
	if err := r.db.GetContext(ctx, &row, q, fromID, toID); err != nil {
		return nil, err
	}
	return &row, nil
}

// PairRequestExists reports whether a request exists between two users in
// either direction.
func (r *FriendRepo) PairRequestExists(ctx context.Context, a, b string) (bool, error) {
	const q = `SELECT 1 FROM friend_requests
	           WHERE (from_user_id = $1 AND to_user_id = $2)
	              OR (from_user_id = $2 AND to_user_id = $1)`
	var one int
	err := r.db.GetContext(ctx, &one, q, a, b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteRequest removes a request row by id.
func (r *FriendRepo) DeleteRequest(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	return err
}

// AcceptRequest deletes the request row and inserts both directed edge rows
// in one transaction, so a crash can never lose the request without forming
// the friendship.
func (r *FriendRepo) AcceptRequest(ctx context.Context, req *entity.FriendRequest) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM friend_requests WHERE id = $1`, req.ID); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	const ins = `INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, ins, req.FromUserID, req.ToUserID); err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ins, req.ToUserID, req.FromUserID); err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	return tx.Commit()
}

// AreFriends reports whether the edge exists symmetrically on both sides.
func (r *FriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	const q = `SELECT COUNT(*) FROM friendships
	           WHERE (user_id = $1 AND friend_id = $2)
	              OR (user_id = $2 AND friend_id = $1)`
	var n int
	if err := r.db.GetContext(ctx, &n, q, a, b); err != nil {
		return false, err
	}
	return n == 2, nil
}

// DeleteFriendship removes both directed rows of an edge in one transaction.
func (r *FriendRepo) DeleteFriendship(ctx context.Context, a, b string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const del = `DELETE FROM friendships WHERE user_id = $1 AND friend_id = $2`
	if _, err := tx.ExecContext(ctx, del, a, b); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, del, b, a); err != nil {
		return err
	}
	return tx.Commit()
}

// ListFriends returns the public projection of a user's current friends.
func (r *FriendRepo) ListFriends(ctx context.Context, userID string) ([]userentity.PublicProfile, error) {
	const q = `SELECT u.id, u.username FROM friendships f
	           JOIN users u ON u.id = f.friend_id
	           WHERE f.user_id = $1
	           ORDER BY u.username`
	out := []userentity.PublicProfile{}
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRequests returns every pending request involving a user, either
// direction.
func (r *FriendRepo) ListRequests(ctx context.Context, userID string) ([]entity.FriendRequest, error) {
	const q = `SELECT id, from_user_id, to_user_id, type, created_at
	           FROM friend_requests
	           WHERE from_user_id = $1 OR to_user_id = $1
	           ORDER BY created_at`
	out := []entity.FriendRequest{}
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}
