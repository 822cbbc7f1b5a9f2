package models

import "time"

// Session is one anonymous browser identity. The uid is all that matters;
// rows exist so identities survive service restarts.
type Session struct {
	Uid       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}
