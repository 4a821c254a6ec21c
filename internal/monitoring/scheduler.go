package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/services"
)

// Scheduler runs the unattended maintenance loop behind the schedule
// subcommand: cron-timed backups with retention, plus a periodic health
// probe that records status flips.
type Scheduler struct {
	backupSvc services.BackupServiceProvider
	eventSvc  services.EventServiceProvider
	health    services.HealthWaiter
	retention int

	schedule      cron.Schedule
	probeInterval time.Duration
	nextBackup    time.Time
	wasHealthy    bool

	ticker *time.Ticker
	done   chan bool
}

// NewScheduler creates a scheduler. cronExpr uses the standard 5-field
// syntax and is validated here.
func NewScheduler(backupSvc services.BackupServiceProvider, eventSvc services.EventServiceProvider, health services.HealthWaiter, cronExpr string, probeInterval time.Duration, retention int) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return &Scheduler{
		backupSvc:     backupSvc,
		eventSvc:      eventSvc,
		health:        health,
		retention:     retention,
		schedule:      schedule,
		probeInterval: probeInterval,
		nextBackup:    schedule.Next(time.Now()),
		wasHealthy:    true,
		done:          make(chan bool),
	}, nil
}

// Run starts the scheduler's ticking loop. It blocks until Stop is called.
func (s *Scheduler) Run() {
	log.Info().Time("next_backup", s.nextBackup).Dur("probe_interval", s.probeInterval).Msg("Starting schedule loop...")
	s.ticker = time.NewTicker(s.probeInterval)
	defer s.ticker.Stop()

	// Probe once immediately on start
	s.probeHealth()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping schedule loop.")
			return
		case now := <-s.ticker.C:
			s.probeHealth()
			if now.After(s.nextBackup) {
				s.runBackup()
				s.nextBackup = s.schedule.Next(now)
				log.Info().Time("next_backup", s.nextBackup).Msg("Scheduled backup done")
			}
		}
	}
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.done <- true
}

func (s *Scheduler) runBackup() {
	if _, err := s.backupSvc.CreateBackup("schedule"); err != nil {
		log.Error().Err(err).Msg("Scheduled backup failed")
		s.eventSvc.CreateEvent("schedule", "schedule.backup", "error", "Scheduled backup failed: "+err.Error())
		return
	}
	if _, err := s.backupSvc.Prune(s.retention); err != nil {
		log.Warn().Err(err).Msg("Retention prune after scheduled backup failed")
	}
}

// probeHealth runs one health wait and records transitions between
// healthy and unhealthy.
func (s *Scheduler) probeHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), s.probeInterval)
	defer cancel()

	err := s.health.Wait(ctx)
	healthy := err == nil
	if healthy == s.wasHealthy {
		return
	}
	s.wasHealthy = healthy

	if healthy {
		log.Info().Msg("Application recovered")
		s.eventSvc.CreateEvent("schedule", "probe.recovered", "info", "Application is answering health checks again.")
	} else {
		log.Error().Err(err).Msg("Application is unhealthy")
		s.eventSvc.CreateEvent("schedule", "probe.unhealthy", "error", "Application stopped answering health checks: "+err.Error())
	}
}
