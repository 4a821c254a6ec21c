package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/config"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/database"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/docker"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/logger"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/monitoring"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/services"
)

// Exit codes, one per failure class.
const (
	exitOK           = 0
	exitUsage        = 1
	exitPrerequisite = 2
	exitBuild        = 3
	exitDeploy       = 4
	exitHealth       = 5
	exitFailure      = 6
)

var knownCommands = map[string]bool{
	"deploy": true, "update": true, "backup": true, "cleanup": true,
	"status": true, "logs": true, "stop": true, "restart": true,
	"schedule": true,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("legal-analyzer-deploy", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	follow := flags.BoolP("follow", "f", false, "follow container logs")
	keep := flags.Int("keep", 0, "override backup retention for cleanup")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	command := "deploy"
	if rest := flags.Args(); len(rest) > 0 {
		command = rest[0]
	}
	if !knownCommands[command] {
		fmt.Fprintf(stderr, "unknown command: %s\n\n", command)
		usage(stderr, flags)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitFailure
	}
	logger.Init(cfg.AppLogLevel)
	if *keep > 0 {
		cfg.Retention = *keep
	}

	db, err := database.New(cfg.HistoryDB)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open history database")
		return exitFailure
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Error().Err(err).Msg("Failed to apply database migrations")
		return exitFailure
	}

	dockerClient, err := docker.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize Docker client")
		return exitPrerequisite
	}

	eventService := services.NewEventService(db)
	historyService := services.NewHistoryService(db)
	backupService := services.NewBackupService(db, eventService, cfg.DataDir, cfg.BackupDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.AppPort, cfg.HealthPath)
	health := services.NewHealthChecker(healthURL, cfg.HealthAttempts, cfg.HealthInterval)
	lifecycle := services.NewLifecycleService(cfg, dockerClient, backupService, eventService, historyService, health)
	lifecycle.SetOutput(stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "deploy":
		err = lifecycle.Deploy(ctx)
	case "update":
		err = lifecycle.Update(ctx)
	case "backup":
		err = lifecycle.Backup(ctx)
	case "cleanup":
		err = lifecycle.Cleanup(ctx)
	case "status":
		err = lifecycle.Status(ctx)
	case "logs":
		err = lifecycle.Logs(ctx, *follow)
	case "stop":
		err = lifecycle.Stop(ctx)
	case "restart":
		err = lifecycle.Restart(ctx)
	case "schedule":
		err = runSchedule(ctx, cfg, backupService, eventService, health)
	}

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			color.New(color.FgRed, color.Bold).Fprintln(stderr, "✗ "+err.Error())
		}
		return exitCode(err)
	}
	return exitOK
}

// runSchedule blocks on the maintenance loop until the context is
// cancelled by a signal.
func runSchedule(ctx context.Context, cfg *config.Config, backups services.BackupServiceProvider, events services.EventServiceProvider, health services.HealthWaiter) error {
	scheduler, err := monitoring.NewScheduler(backups, events, health, cfg.BackupSchedule, cfg.ProbeInterval, cfg.Retention)
	if err != nil {
		return err
	}
	go scheduler.Run()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, services.ErrPrerequisite):
		return exitPrerequisite
	case errors.Is(err, services.ErrBuild):
		return exitBuild
	case errors.Is(err, services.ErrDeploy):
		return exitDeploy
	case errors.Is(err, services.ErrHealthTimeout):
		return exitHealth
	default:
		return exitFailure
	}
}

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: legal-analyzer-deploy [flags] {deploy|update|backup|cleanup|status|logs|stop|restart|schedule}")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  deploy    build the image, start the container, wait for health (default)")
	fmt.Fprintln(w, "  update    backup, pull newer source if available, then deploy")
	fmt.Fprintln(w, "  backup    snapshot the data directory into backups/")
	fmt.Fprintln(w, "  cleanup   prune the build cache and old backups")
	fmt.Fprintln(w, "  status    show container, host and deployment status")
	fmt.Fprintln(w, "  logs      stream container logs")
	fmt.Fprintln(w, "  stop      stop the running container")
	fmt.Fprintln(w, "  restart   stop, then deploy again")
	fmt.Fprintln(w, "  schedule  run cron-timed backups and health probes until interrupted")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flags.FlagUsages())
}
