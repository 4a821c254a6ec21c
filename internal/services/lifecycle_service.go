package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/config"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/docker"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/models"
	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/tlscert"
)

// ContainerRuntime is the slice of the Docker client the lifecycle needs.
type ContainerRuntime interface {
	Ping(ctx context.Context) error
	BuildImage(ctx context.Context, contextDir, tag string, out io.Writer) error
	ReplaceContainer(ctx context.Context, spec docker.ContainerSpec) (string, error)
	StopByName(ctx context.Context, name string) (bool, error)
	ListManaged(ctx context.Context) ([]types.Container, error)
	StreamLogs(ctx context.Context, name string, follow bool, out io.Writer) error
	PruneBuildCache(ctx context.Context) (uint64, error)
}

// HealthWaiter blocks until the application answers or the budget runs out.
type HealthWaiter interface {
	Wait(ctx context.Context) error
}

// LifecycleService translates each subcommand into an ordered sequence of
// external operations, aborting on the first hard failure.
type LifecycleService struct {
	cfg     *config.Config
	runtime ContainerRuntime
	backups BackupServiceProvider
	events  EventServiceProvider
	history HistoryServiceProvider
	health  HealthWaiter
	out     io.Writer

	// Swappable for tests.
	diskUsage  func(path string) (*disk.UsageStat, error)
	pullSource func(ctx context.Context) (string, error)
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(cfg *config.Config, runtime ContainerRuntime, backups BackupServiceProvider, events EventServiceProvider, history HistoryServiceProvider, health HealthWaiter) *LifecycleService {
	return &LifecycleService{
		cfg:        cfg,
		runtime:    runtime,
		backups:    backups,
		events:     events,
		history:    history,
		health:     health,
		out:        os.Stdout,
		diskUsage:  disk.Usage,
		pullSource: gitPull,
	}
}

// SetOutput redirects operator-facing output (defaults to stdout).
func (s *LifecycleService) SetOutput(w io.Writer) {
	s.out = w
}

// Deploy runs the full sequence: prerequisites, directories, TLS, build,
// container replace, health wait, status.
func (s *LifecycleService) Deploy(ctx context.Context) error {
	s.events.CreateEvent("deploy", "deploy.start", "info", fmt.Sprintf("Deploying image '%s'.", s.cfg.ImageName))

	s.step("Checking prerequisites")
	if err := s.checkPrerequisites(ctx); err != nil {
		return err
	}

	s.step("Preparing directories and TLS certificate")
	if err := s.prepareWorkspace(); err != nil {
		return err
	}

	dep, err := s.history.BeginDeployment(s.cfg.ImageName)
	if err != nil {
		log.Warn().Err(err).Msg("Could not record deployment start")
	}

	s.step("Building image " + s.cfg.ImageName)
	if err := s.runtime.BuildImage(ctx, ".", s.cfg.ImageName, s.out); err != nil {
		s.finish(dep.ID, "", models.DeploymentFailed, err.Error())
		s.events.CreateEvent("deploy", "deploy.build", "error", err.Error())
		return fmt.Errorf("%w: %s", ErrBuild, err)
	}

	s.step("Starting container " + s.cfg.ContainerName)
	containerID, err := s.runtime.ReplaceContainer(ctx, s.containerSpec())
	if err != nil {
		s.finish(dep.ID, containerID, models.DeploymentFailed, err.Error())
		s.events.CreateEvent("deploy", "deploy.run", "error", err.Error())
		return fmt.Errorf("%w: %s", ErrDeploy, err)
	}

	s.step("Waiting for the application to become healthy")
	if err := s.health.Wait(ctx); err != nil {
		s.finish(dep.ID, containerID, models.DeploymentFailed, err.Error())
		s.events.CreateEvent("deploy", "deploy.health", "error", err.Error())
		return err
	}

	s.finish(dep.ID, containerID, models.DeploymentHealthy, "")
	s.events.CreateEvent("deploy", "deploy.success", "info",
		fmt.Sprintf("Container '%s' is running and healthy.", s.cfg.ContainerName))
	s.ok("Deployment complete")
	return s.Status(ctx)
}

// Update snapshots current data, refreshes the source tree when possible,
// and re-runs the deploy sequence. Exactly one backup happens before any
// rebuild is attempted.
func (s *LifecycleService) Update(ctx context.Context) error {
	s.step("Backing up data before update")
	if _, err := s.backups.CreateBackup("update"); err != nil {
		return fmt.Errorf("pre-update backup failed: %w", err)
	}

	s.step("Pulling latest source")
	if out, err := s.pullSource(ctx); err != nil {
		// Soft failure: a working tree without a remote is fine.
		log.Warn().Err(err).Msg("Could not pull newer source, deploying current tree")
		s.events.CreateEvent("update", "update.pull", "warn", "Source pull failed: "+err.Error())
		s.warn("No source updates pulled: " + err.Error())
	} else if out != "" {
		fmt.Fprint(s.out, out)
	}

	return s.Deploy(ctx)
}

// Backup takes one snapshot of the data directory.
func (s *LifecycleService) Backup(ctx context.Context) error {
	backup, err := s.backups.CreateBackup("backup")
	if err != nil {
		return err
	}
	s.ok(fmt.Sprintf("Backup %s created (%d bytes)", backup.Name, backup.Size))
	return nil
}

// Cleanup prunes the build cache and applies the backup retention window.
func (s *LifecycleService) Cleanup(ctx context.Context) error {
	s.step("Pruning build cache")
	reclaimed, err := s.runtime.PruneBuildCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to prune build cache: %w", err)
	}
	s.ok(fmt.Sprintf("Reclaimed %d bytes of build cache", reclaimed))

	s.step(fmt.Sprintf("Pruning backups beyond the %d most recent", s.cfg.Retention))
	removed, err := s.backups.Prune(s.cfg.Retention)
	if err != nil {
		return err
	}
	if len(removed) == 0 {
		s.ok("No backups to prune")
	} else {
		s.ok(fmt.Sprintf("Removed %d old backup(s): %s", len(removed), strings.Join(removed, ", ")))
	}
	s.events.CreateEvent("cleanup", "cleanup.done", "info",
		fmt.Sprintf("Cleanup reclaimed %d bytes and removed %d backup(s).", reclaimed, len(removed)))
	return nil
}

// Stop stops the running instance. A missing instance is a warning only.
func (s *LifecycleService) Stop(ctx context.Context) error {
	stopped, err := s.runtime.StopByName(ctx, s.cfg.ContainerName)
	if err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if !stopped {
		s.warn("No running instance of " + s.cfg.ContainerName)
		return nil
	}
	s.events.CreateEvent("stop", "container.stop", "info",
		fmt.Sprintf("Container '%s' was stopped.", s.cfg.ContainerName))
	s.ok("Stopped " + s.cfg.ContainerName)
	return nil
}

// Restart stops the instance and runs the full deploy sequence again.
func (s *LifecycleService) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Deploy(ctx)
}

// Logs streams container logs to stdout.
func (s *LifecycleService) Logs(ctx context.Context, follow bool) error {
	return s.runtime.StreamLogs(ctx, s.cfg.ContainerName, follow, s.out)
}

// Status prints the managed container, host resources, the last
// deployment, recent events, and the fixed access URLs.
func (s *LifecycleService) Status(ctx context.Context) error {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintln(s.out, "== Legal Situation Analyzer ==")

	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		return fmt.Errorf("could not list containers: %w", err)
	}
	if len(containers) == 0 {
		s.warn("No managed containers running")
	}
	for _, c := range containers {
		name := strings.TrimPrefix(strings.Join(c.Names, ","), "/")
		fmt.Fprintf(s.out, "  %-20s %-28s %s\n", name, c.Image, c.Status)
	}

	if usage, err := s.diskUsage("."); err == nil {
		fmt.Fprintf(s.out, "  disk: %.1f GB free of %.1f GB (%.0f%% used)\n",
			float64(usage.Free)/gb, float64(usage.Total)/gb, usage.UsedPercent)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(s.out, "  memory: %.1f GB available of %.1f GB\n",
			float64(vm.Available)/gb, float64(vm.Total)/gb)
	}

	if dep, err := s.history.LatestDeployment(); err == nil {
		when := dep.CreatedAt.Format(time.RFC3339)
		fmt.Fprintf(s.out, "  last deployment: %s (%s) at %s\n", dep.Status, dep.Image, when)
	}

	if events, err := s.events.GetRecentEvents(5); err == nil && len(events) > 0 {
		header.Fprintln(s.out, "Recent events:")
		for _, e := range events {
			fmt.Fprintf(s.out, "  [%s] %-18s %s\n", e.Level, e.Type, e.Message)
		}
	}

	header.Fprintln(s.out, "Access:")
	fmt.Fprintln(s.out, "  https://localhost            (nginx, self-signed certificate)")
	fmt.Fprintf(s.out, "  http://localhost:%d         (Streamlit, direct)\n", s.cfg.AppPort)
	fmt.Fprintf(s.out, "  logs: %s logs -f\n", filepath.Base(os.Args[0]))
	return nil
}

const gb = 1024 * 1024 * 1024

// checkPrerequisites verifies the daemon is reachable and disk space is
// above the hard minimum. Space between the two thresholds only warns.
func (s *LifecycleService) checkPrerequisites(ctx context.Context) error {
	if err := s.runtime.Ping(ctx); err != nil {
		return fmt.Errorf("%w: docker daemon not reachable: %s", ErrPrerequisite, err)
	}

	usage, err := s.diskUsage(".")
	if err != nil {
		return fmt.Errorf("%w: could not stat disk: %s", ErrPrerequisite, err)
	}
	freeGB := usage.Free / gb
	if freeGB < s.cfg.MinDiskGB {
		return fmt.Errorf("%w: only %d GB free, %d GB required", ErrPrerequisite, freeGB, s.cfg.MinDiskGB)
	}
	if freeGB < s.cfg.WarnDiskGB {
		log.Warn().Uint64("free_gb", freeGB).Uint64("warn_gb", s.cfg.WarnDiskGB).Msg("Disk space is getting low")
		s.warn(fmt.Sprintf("Low disk space: %d GB free", freeGB))
	}
	return nil
}

// prepareWorkspace creates the fixed directory layout and ensures the
// self-signed TLS pair exists.
func (s *LifecycleService) prepareWorkspace() error {
	for _, dir := range s.cfg.Dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: could not create %s: %s", ErrPrerequisite, dir, err)
		}
	}

	generated, err := tlscert.Ensure(s.cfg.SSLDir, "localhost", []string{"localhost", "127.0.0.1"})
	if err != nil {
		return err
	}
	if generated {
		s.events.CreateEvent("deploy", "tls.generate", "info", "Generated self-signed TLS certificate.")
		s.ok("Generated self-signed certificate in " + s.cfg.SSLDir)
	}
	return nil
}

// containerSpec assembles the run configuration for the app container.
func (s *LifecycleService) containerSpec() docker.ContainerSpec {
	abs := func(p string) string {
		a, err := filepath.Abs(p)
		if err != nil {
			return p
		}
		return a
	}
	return docker.ContainerSpec{
		Name:  s.cfg.ContainerName,
		Image: s.cfg.ImageName,
		Env:   s.cfg.AppEnv(),
		Port:  s.cfg.AppPort,
		Mounts: []docker.BindMount{
			{Source: abs(s.cfg.DataDir), Target: "/app/data"},
			{Source: abs(s.cfg.LogsDir), Target: "/app/logs"},
			{Source: abs(s.cfg.ModelsDir), Target: "/app/models"},
			{Source: abs(s.cfg.ExportsDir), Target: "/app/exports"},
		},
	}
}

func (s *LifecycleService) finish(depID, containerID, status, message string) {
	if depID == "" {
		return
	}
	if err := s.history.FinishDeployment(depID, containerID, status, message); err != nil {
		log.Warn().Err(err).Msg("Could not record deployment outcome")
	}
}

func (s *LifecycleService) step(msg string) {
	color.New(color.FgBlue).Fprintln(s.out, "==> "+msg)
}

func (s *LifecycleService) ok(msg string) {
	color.New(color.FgGreen).Fprintln(s.out, "  ✓ "+msg)
}

func (s *LifecycleService) warn(msg string) {
	color.New(color.FgYellow).Fprintln(s.out, "  ! "+msg)
}

// gitPull attempts a fast-forward pull of the working tree. Callers treat
// any failure as soft.
func gitPull(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "pull", "--ff-only")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git pull: %s", strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
