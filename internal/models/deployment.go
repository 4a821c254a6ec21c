package models

import "time"

// Deployment statuses, in lifecycle order.
const (
	DeploymentStarting = "starting"
	DeploymentHealthy  = "healthy"
	DeploymentFailed   = "failed"
)

// Deployment records one attempt to build and run the application container.
type Deployment struct {
	ID          string     `json:"id"`
	Image       string     `json:"image"`
	ContainerID string     `json:"containerId"`
	Status      string     `json:"status"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinishedAt  *time.Time `json:"finishedAt"`
}
