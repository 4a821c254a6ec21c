package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/models"
)

type stubBackups struct {
	created   int
	pruneKeep int
	err       error
}

func (s *stubBackups) CreateBackup(command string) (models.Backup, error) {
	s.created++
	return models.Backup{Name: "backup_20240601_040000"}, s.err
}

func (s *stubBackups) ListBackups() ([]string, error) { return nil, nil }

func (s *stubBackups) Prune(keep int) ([]string, error) {
	s.pruneKeep = keep
	return nil, nil
}

type stubEvents struct{ types []string }

func (s *stubEvents) CreateEvent(command, eventType, level, message string) error {
	s.types = append(s.types, eventType)
	return nil
}

func (s *stubEvents) GetRecentEvents(limit int) ([]models.Event, error) { return nil, nil }

type stubHealth struct{ err error }

func (s *stubHealth) Wait(ctx context.Context) error { return s.err }

func TestNewScheduler_RejectsBadCron(t *testing.T) {
	_, err := NewScheduler(&stubBackups{}, &stubEvents{}, &stubHealth{}, "every day at dawn", time.Minute, 10)
	assert.Error(t, err)
}

func TestNewScheduler_ComputesNextBackup(t *testing.T) {
	s, err := NewScheduler(&stubBackups{}, &stubEvents{}, &stubHealth{}, "0 4 * * *", time.Minute, 10)
	require.NoError(t, err)
	assert.True(t, s.nextBackup.After(time.Now()))
}

func TestRunBackup_AppliesRetention(t *testing.T) {
	backups := &stubBackups{}
	s, err := NewScheduler(backups, &stubEvents{}, &stubHealth{}, "0 4 * * *", time.Minute, 7)
	require.NoError(t, err)

	s.runBackup()

	assert.Equal(t, 1, backups.created)
	assert.Equal(t, 7, backups.pruneKeep)
}

func TestRunBackup_FailureIsRecorded(t *testing.T) {
	backups := &stubBackups{err: errors.New("disk gone")}
	events := &stubEvents{}
	s, err := NewScheduler(backups, events, &stubHealth{}, "0 4 * * *", time.Minute, 10)
	require.NoError(t, err)

	s.runBackup()

	assert.Contains(t, events.types, "schedule.backup")
	assert.Zero(t, backups.pruneKeep, "no prune after a failed backup")
}

func TestProbeHealth_RecordsOnlyTransitions(t *testing.T) {
	events := &stubEvents{}
	health := &stubHealth{}
	s, err := NewScheduler(&stubBackups{}, events, health, "0 4 * * *", time.Minute, 10)
	require.NoError(t, err)

	// Healthy from the start: nothing to record.
	s.probeHealth()
	assert.Empty(t, events.types)

	// Flip to unhealthy, then stay unhealthy: one event.
	health.err = errors.New("connection refused")
	s.probeHealth()
	s.probeHealth()
	assert.Equal(t, []string{"probe.unhealthy"}, events.types)

	// Recover: one more.
	health.err = nil
	s.probeHealth()
	assert.Equal(t, []string{"probe.unhealthy", "probe.recovered"}, events.types)
}
