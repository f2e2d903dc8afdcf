// Package backup manages timestamped, checksummed copies of the
// configuration file. The backup directory is the durable store: records are
// reconstructed by rescanning it, and retention is enforced create-then-prune
// so a failed rotation can never leave fewer backups than before.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/cochaviz/grubctl/internal/models"
)

const (
	// DefaultRetain is the retention cap applied when none is configured.
	DefaultRetain = 10

	backupPrefix    = "grub.bak."
	checksumSuffix  = ".sha256"
	timestampLayout = "20060102-150405"

	// spaceHeadroom is required free space beyond the file size before a
	// backup is attempted.
	spaceHeadroom = 1 << 20
)

// Manager creates, verifies, lists, and restores backups of one source file.
type Manager struct {
	Logger *slog.Logger
	// SourcePath is the live configuration file being protected.
	SourcePath string
	// Dir is the backup directory, created on first use.
	Dir string
	// Retain caps how many backups are kept; zero means DefaultRetain.
	Retain int
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) retain() int {
	if m.Retain > 0 {
		return m.Retain
	}
	return DefaultRetain
}

// Create copies the source file into the backup directory under a
// timestamped name, stores its checksum, and prunes backups beyond the
// retention cap. Pruning happens only after the new backup is written and
// checksummed. Any failure here must stop the caller from mutating the
// source file.
func (m *Manager) Create() (*models.BackupRecord, error) {
	content, err := os.ReadFile(m.SourcePath)
	if err != nil {
		return nil, models.NewError(models.KindBackup, fmt.Sprintf("cannot read %s", m.SourcePath), err)
	}

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, models.NewError(models.KindBackup, "cannot create backup directory", err)
	}
	if err := m.checkFreeSpace(int64(len(content))); err != nil {
		return nil, err
	}

	now := time.Now()
	path, id := m.nextBackupPath(now)

	if err := atomicWriteFile(path, content, 0o600); err != nil {
		return nil, models.NewError(models.KindBackup, "cannot write backup", err)
	}
	checksum := checksumBytes(content)
	if err := atomicWriteFile(path+checksumSuffix, []byte(checksum+"\n"), 0o600); err != nil {
		_ = os.Remove(path)
		return nil, models.NewError(models.KindBackup, "cannot write backup checksum", err)
	}

	record := &models.BackupRecord{
		ID:         id,
		SourcePath: m.SourcePath,
		Path:       path,
		CreatedAt:  now,
		Checksum:   checksum,
		SizeBytes:  int64(len(content)),
		Valid:      true,
	}
	m.logger().Info("backup created", "path", path, "checksum", checksum[:12])

	m.prune()
	return record, nil
}

// nextBackupPath returns an unused backup path for the given time, adding a
// numeric suffix when more than one backup lands in the same second.
func (m *Manager) nextBackupPath(now time.Time) (string, string) {
	base := now.Format(timestampLayout)
	id := base
	for n := 2; ; n++ {
		path := filepath.Join(m.Dir, backupPrefix+id)
		if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
			return path, id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func (m *Manager) checkFreeSpace(need int64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.Dir, &stat); err != nil {
		// Statfs failing is not itself fatal; the write will report a
		// real problem if there is one.
		return nil
	}
	free := int64(stat.Bavail) * stat.Bsize
	if free < need+spaceHeadroom {
		return models.NewError(models.KindBackup,
			fmt.Sprintf("not enough free space in %s (%d bytes available)", m.Dir, free), nil)
	}
	return nil
}

// Verify recomputes the checksum of the stored backup and compares it with
// the recorded one.
func (m *Manager) Verify(record *models.BackupRecord) bool {
	sum, err := checksumFile(record.Path)
	return err == nil && sum == record.Checksum
}

// Get returns the backup with the given identifier.
func (m *Manager) Get(id string) (*models.BackupRecord, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, models.NewError(models.KindBackup, fmt.Sprintf("no backup with id %s", id), nil)
}

// List rescans the backup directory and returns records newest first.
// Backups whose checksum no longer matches are flagged invalid, not hidden.
func (m *Manager) List() ([]*models.BackupRecord, error) {
	entries, err := os.ReadDir(m.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewError(models.KindBackup, "cannot read backup directory", err)
	}

	var records []*models.BackupRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || strings.HasSuffix(name, checksumSuffix) {
			continue
		}

		path := filepath.Join(m.Dir, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		record := &models.BackupRecord{
			ID:         strings.TrimPrefix(name, backupPrefix),
			SourcePath: m.SourcePath,
			Path:       path,
			SizeBytes:  info.Size(),
		}
		if created, err := time.ParseInLocation(timestampLayout, timestampOf(record.ID), time.Local); err == nil {
			record.CreatedAt = created
		} else {
			record.CreatedAt = info.ModTime()
		}

		record.Checksum = readChecksum(path + checksumSuffix)
		record.Valid = record.Checksum != "" && m.Verify(record)
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

// Restore verifies the backup, takes a fresh backup of the live file (a
// restore is itself a mutation and must be undoable), then writes the backup
// content over the live file atomically. The caller is responsible for any
// privilege escalation; this path is used when the process can write the
// live file directly.
func (m *Manager) Restore(record *models.BackupRecord) error {
	if !m.Verify(record) {
		return models.NewError(models.KindBackup,
			fmt.Sprintf("backup %s failed integrity verification", record.ID), nil)
	}

	content, err := os.ReadFile(record.Path)
	if err != nil {
		return models.NewError(models.KindBackup, "cannot read backup", err)
	}

	if _, err := m.Create(); err != nil {
		return err
	}

	if err := atomicWriteFile(m.SourcePath, content, 0o644); err != nil {
		return models.NewError(models.KindBackup, fmt.Sprintf("cannot restore over %s", m.SourcePath), err)
	}
	m.logger().Info("backup restored", "id", record.ID, "target", m.SourcePath)
	return nil
}

// prune removes the oldest backups beyond the retention cap. Errors are
// logged, not returned: the new backup already exists and pruning failures
// must not fail the mutation it protects.
func (m *Manager) prune() {
	records, err := m.List()
	if err != nil {
		m.logger().Warn("cannot scan backups for pruning", "error", err)
		return
	}
	for _, record := range records[min(len(records), m.retain()):] {
		if err := os.Remove(record.Path); err != nil {
			m.logger().Warn("cannot prune backup", "path", record.Path, "error", err)
			continue
		}
		_ = os.Remove(record.Path + checksumSuffix)
		m.logger().Debug("pruned backup", "path", record.Path)
	}
}

func timestampOf(id string) string {
	// Strip the -N collision suffix if present.
	if len(id) > len(timestampLayout) {
		return id[:len(timestampLayout)]
	}
	return id
}

func readChecksum(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func checksumBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// atomicWriteFile writes data via temp + fsync + rename so a partial write is
// never visible at the target path.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}
