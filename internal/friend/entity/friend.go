package entity

import "time"

// FriendRequest is a directional, ephemeral proposal to form a friendship
// edge. At most one request may exist per unordered user pair, in either
// direction; the storage layer enforces this with a direction-insensitive
// unique index.
type FriendRequest struct {
	ID         string    `db:"id" json:"id"`
	FromUserID string    `db:"from_user_id" json:"from"`
	ToUserID   string    `db:"to_user_id" json:"to"`
	Type       string    `db:"type" json:"type"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// RequestTypeFriend is the only request type currently defined.
const RequestTypeFriend = "FRIEND"
