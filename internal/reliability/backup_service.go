// Package reliability keeps local snapshots of the history database and
// optionally mirrors them to object storage.
package reliability

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/database"
)

const (
	backupTimeFormat = "20060102-150405"
	backupExt        = ".db"

	// UploadGroup is the object prefix backups are uploaded under
	UploadGroup = "backups"

	// Always keep the newest snapshots regardless of age
	minBackupsToKeep = 3
)

// Uploader copies files to remote storage
type Uploader interface {
	Upload(ctx context.Context, group string, files []string) error
}

// BackupInfo describes one snapshot on disk
type BackupInfo struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum,omitempty"`
}

// BackupService snapshots a database into a backup directory
type BackupService struct {
	db       *database.DB
	dir      string
	uploader Uploader // optional
	now      func() time.Time
	log      zerolog.Logger
}

// NewBackupService creates a new backup service. uploader may be nil.
func NewBackupService(db *database.DB, dir string, uploader Uploader, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:       db,
		dir:      dir,
		uploader: uploader,
		now:      time.Now,
		log:      log.With().Str("service", "backup").Logger(),
	}
}

// Dir returns the backup directory
func (s *BackupService) Dir() string {
	return s.dir
}

// CreateBackup writes a consistent snapshot with VACUUM INTO and uploads it
// when an uploader is configured. Upload failures are logged.
func (s *BackupService) CreateBackup(ctx context.Context) (BackupInfo, error) {
	start := time.Now()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to create backup directory: %w", err)
	}

	ts := s.now().UTC()
	path := filepath.Join(s.dir, s.fileName(ts))
	if _, err := s.db.Conn().ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return BackupInfo{}, fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to stat backup: %w", err)
	}
	checksum, err := calculateChecksum(path)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	backup := BackupInfo{
		Path:      path,
		Timestamp: ts.Truncate(time.Second),
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}

	if s.uploader != nil {
		if err := s.uploader.Upload(ctx, UploadGroup, []string{path}); err != nil {
			s.log.Error().Err(err).Str("path", path).Msg("Failed to upload backup")
		}
	}

	s.log.Info().
		Str("path", path).
		Int64("size_bytes", backup.SizeBytes).
		Dur("duration", time.Since(start)).
		Msg("Database backup created")
	return backup, nil
}

// ListBackups returns the snapshots in the backup directory, newest first
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	prefix := s.db.Name() + "-"
	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		ts, err := time.Parse(backupTimeFormat, strings.TrimSuffix(strings.TrimPrefix(name, prefix), backupExt))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(s.dir, name),
			Timestamp: ts,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RotateOldBackups deletes snapshots older than retentionDays, always keeping
// the newest three. retentionDays 0 keeps everything. Returns the number deleted.
func (s *BackupService) RotateOldBackups(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= minBackupsToKeep {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(backup.Path); err != nil {
			s.log.Error().Err(err).Str("path", backup.Path).Msg("Failed to delete old backup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info().Int("deleted", deleted).Int("retention_days", retentionDays).Msg("Old backups rotated")
	}
	return deleted, nil
}

func (s *BackupService) fileName(ts time.Time) string {
	return s.db.Name() + "-" + ts.Format(backupTimeFormat) + backupExt
}

func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}
