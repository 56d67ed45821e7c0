package models

import "time"

type DispatchHistory struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	Platform  string    `db:"platform" json:"platform"`
	Outcome   string    `db:"outcome" json:"outcome"` // success, transient, permanent
	Detail    string    `db:"detail" json:"detail"`
	Attempt   int       `db:"attempt" json:"attempt"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
