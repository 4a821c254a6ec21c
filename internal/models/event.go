package models

import "time"

// Event represents a loggable controller action or alert.
type Event struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"` // subcommand that produced it, e.g. "deploy"
	Type      string    `json:"type"`    // e.g., "deploy.build", "backup.prune"
	Level     string    `json:"level"`   // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
