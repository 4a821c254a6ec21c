package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/models"
)

// HistoryServiceProvider defines the interface for deployment history.
type HistoryServiceProvider interface {
	BeginDeployment(image string) (models.Deployment, error)
	FinishDeployment(id, containerID, status, message string) error
	LatestDeployment() (models.Deployment, error)
}

// HistoryService records deployment attempts and their outcomes.
type HistoryService struct {
	db *sql.DB
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(db *sql.DB) *HistoryService {
	return &HistoryService{db: db}
}

// BeginDeployment inserts a starting deployment row.
func (s *HistoryService) BeginDeployment(image string) (models.Deployment, error) {
	dep := models.Deployment{
		ID:     uuid.New().String(),
		Image:  image,
		Status: models.DeploymentStarting,
	}
	_, err := s.db.Exec("INSERT INTO deployments (id, image, status) VALUES (?, ?, ?)", dep.ID, dep.Image, dep.Status)
	if err != nil {
		return models.Deployment{}, err
	}
	return dep, nil
}

// FinishDeployment stamps a deployment's outcome.
func (s *HistoryService) FinishDeployment(id, containerID, status, message string) error {
	_, err := s.db.Exec(
		"UPDATE deployments SET container_id = ?, status = ?, message = ?, finished_at = ? WHERE id = ?",
		containerID, status, message, time.Now(), id)
	return err
}

// LatestDeployment returns the most recent deployment row.
func (s *HistoryService) LatestDeployment() (models.Deployment, error) {
	var dep models.Deployment
	var containerID, message sql.NullString
	var finishedAt sql.NullTime

	row := s.db.QueryRow(`
		SELECT id, image, container_id, status, message, created_at, finished_at
		FROM deployments ORDER BY created_at DESC LIMIT 1`)
	err := row.Scan(&dep.ID, &dep.Image, &containerID, &dep.Status, &message, &dep.CreatedAt, &finishedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Deployment{}, fmt.Errorf("no deployments recorded")
		}
		return models.Deployment{}, err
	}
	dep.ContainerID = containerID.String
	dep.Message = message.String
	if finishedAt.Valid {
		dep.FinishedAt = &finishedAt.Time
	}
	return dep, nil
}
