package services

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Nitinkgupta9967/legal-analyzer-deploy/internal/models"
)

const backupPrefix = "backup_"

// BackupServiceProvider defines the interface for backup services.
type BackupServiceProvider interface {
	CreateBackup(command string) (models.Backup, error)
	ListBackups() ([]string, error)
	Prune(keep int) ([]string, error)
}

// BackupService snapshots the data directory into timestamped directories
// under the backup root and enforces the retention window.
type BackupService struct {
	db           *sql.DB
	eventService EventServiceProvider
	dataPath     string
	backupPath   string
	now          func() time.Time
}

// NewBackupService creates a new BackupService.
func NewBackupService(db *sql.DB, eventService EventServiceProvider, dataPath, backupPath string) *BackupService {
	return &BackupService{
		db:           db,
		eventService: eventService,
		dataPath:     dataPath,
		backupPath:   backupPath,
		now:          time.Now,
	}
}

// CreateBackup copies the data directory's contents into a new
// backup_<timestamp> directory. A missing or empty data directory still
// produces an (empty) snapshot. command tags the audit event with the
// subcommand that requested the backup.
func (s *BackupService) CreateBackup(command string) (models.Backup, error) {
	if err := os.MkdirAll(s.backupPath, 0755); err != nil {
		return models.Backup{}, fmt.Errorf("could not create backup root: %w", err)
	}

	name := backupPrefix + s.now().Format("20060102_150405")
	dest := filepath.Join(s.backupPath, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(s.backupPath, fmt.Sprintf("%s.%d", name, i))
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return models.Backup{}, fmt.Errorf("could not create backup directory: %w", err)
	}

	size, err := copyTree(s.dataPath, dest)
	if err != nil {
		os.RemoveAll(dest) // Clean up partial snapshot
		return models.Backup{}, fmt.Errorf("failed to copy data directory: %w", err)
	}

	backup := models.Backup{
		ID:   uuid.New().String(),
		Name: filepath.Base(dest),
		Path: dest,
		Size: size,
	}

	if s.db != nil {
		stmt, err := s.db.Prepare("INSERT INTO backups (id, name, path, size) VALUES (?, ?, ?, ?)")
		if err != nil {
			return models.Backup{}, err
		}
		defer stmt.Close()
		if _, err = stmt.Exec(backup.ID, backup.Name, backup.Path, backup.Size); err != nil {
			return models.Backup{}, err
		}
	}

	if s.eventService != nil {
		s.eventService.CreateEvent(command, "backup.create", "info",
			fmt.Sprintf("Backup '%s' created (%d bytes).", backup.Name, backup.Size))
	}
	log.Info().Str("backup", backup.Name).Int64("size", backup.Size).Msg("Backup created")
	return backup, nil
}

// ListBackups returns the snapshot directory names, newest first. The
// timestamped names sort chronologically, so name order is creation order.
func (s *BackupService) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Prune deletes all but the keep most recent snapshots, oldest first, and
// returns the names of the removed ones.
func (s *BackupService) Prune(keep int) ([]string, error) {
	if keep < 0 {
		keep = 0
	}
	names, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	doomed := names[keep:]
	// Delete oldest first so an interrupted prune leaves the newest intact.
	sort.Strings(doomed)

	var removed []string
	for _, name := range doomed {
		path := filepath.Join(s.backupPath, name)
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("could not delete backup %s: %w", name, err)
		}
		if s.db != nil {
			if _, err := s.db.Exec("DELETE FROM backups WHERE name = ?", name); err != nil {
				log.Warn().Err(err).Str("backup", name).Msg("Could not delete backup record")
			}
		}
		removed = append(removed, name)
	}

	if s.eventService != nil && len(removed) > 0 {
		s.eventService.CreateEvent("cleanup", "backup.prune", "info",
			fmt.Sprintf("Pruned %d old backup(s), keeping the %d most recent.", len(removed), keep))
	}
	return removed, nil
}

// copyTree copies src's contents into dst and returns the bytes copied.
// A missing src is treated as empty.
func copyTree(src, dst string) (int64, error) {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return 0, nil
	}

	var total int64
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		target := filepath.Join(dst, relPath)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
		if err != nil {
			return err
		}
		n, err := io.Copy(out, in)
		total += n
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		return err
	})
	return total, err
}
