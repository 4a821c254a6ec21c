package models

import "time"

// Backup represents one immutable snapshot of the data directory.
type Backup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"-"` // Internal use, not exposed to clients
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
