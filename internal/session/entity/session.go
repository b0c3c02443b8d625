package entity

import "time"

// Session is a server-held record granting a bearer token continued
// validity. It is revocable independently of the token itself; the token is
// only a capability pointing at this row.
type Session struct {
	ID      string    `db:"id" json:"id"`
	UserID  string    `db:"user_id" json:"userId"`
	LastUse time.Time `db:"last_use" json:"lastUse"`
}
