package model

import "time"

// Video mirrors the `videos` table. Media files themselves live elsewhere;
// only their URLs are kept here.
type Video struct {
	ID          string
	VideoFile   string
	Thumbnail   string
	Duration    float64 // seconds
	Title       string
	Description string
	OwnerID     string
	Views       uint64
	IsPublished bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
