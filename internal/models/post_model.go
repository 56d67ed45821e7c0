package models

import "time"

type Post struct {
	ID          int64     `db:"id" json:"id"`
	Text        string    `db:"text" json:"text"`
	Platforms   []string  `db:"platforms" json:"platforms"`
	Groups      []string  `db:"groups" json:"groups"`
	Tags        []string  `db:"tags" json:"tags"`
	Priority    int       `db:"priority" json:"priority"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Status      string    `db:"status" json:"status"` // pending, dispatching, posted, failed
	Attempts    int       `db:"attempts" json:"attempts"`
	FailReason  string    `db:"fail_reason" json:"fail_reason,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID        int64     `db:"id"`
	FileName  string    `db:"file_name"`
	FileType  string    `db:"file_type"`
	FileSize  int64     `db:"file_size"`
	FileURL   string    `db:"file_url"`
	CreatedAt time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	PostStatusPending     = "pending"
	PostStatusDispatching = "dispatching"
	PostStatusPosted      = "posted"
	PostStatusFailed      = "failed"
)

// Clone returns a copy so callers can prepare an update without
// mutating the snapshot handed out by the store.
func (p *Post) Clone() *Post {
	c := *p
	c.Platforms = append([]string(nil), p.Platforms...)
	c.Groups = append([]string(nil), p.Groups...)
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}
