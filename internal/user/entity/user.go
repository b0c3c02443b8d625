package entity

import "time"

// User represents an account row in the `users` table. Username and email
// are unique case-insensitively (citext columns).
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Verified     bool      `db:"verified" json:"verified"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// PublicProfile is the minimal projection of a user shared with other users
// and with the realtime gateway.
type PublicProfile struct {
	ID       string `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
