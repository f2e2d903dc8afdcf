package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/cochaviz/grubctl/internal/executor"
	"github.com/cochaviz/grubctl/internal/models"
)

// ListBackups returns all backups of the configuration file, newest first.
func (s *GrubService) ListBackups() ([]*models.BackupRecord, error) {
	return s.Backups.List()
}

// VerifyBackup recomputes the checksum of one backup.
func (s *GrubService) VerifyBackup(id string) (bool, error) {
	record, err := s.Backups.Get(id)
	if err != nil {
		return false, err
	}
	return s.Backups.Verify(record), nil
}

// RestoreBackup replaces the live configuration with a verified backup and
// regenerates the boot menu. The state before the restore is itself backed
// up first, so a restore is always reversible.
func (s *GrubService) RestoreBackup(ctx context.Context, id string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	logger := s.logger().With("operation", uuid.New().String(), "backup_id", id)

	record, err := s.Backups.Get(id)
	if err != nil {
		return err
	}
	if !s.Backups.Verify(record) {
		return models.NewError(models.KindBackup,
			fmt.Sprintf("backup %s failed checksum verification", id), nil)
	}

	preRestore, err := s.Backups.Create()
	if err != nil {
		return err
	}
	logger.Info("current configuration backed up", "pre_restore_backup", preRestore.ID)

	data, err := os.ReadFile(record.Path)
	if err != nil {
		return models.NewError(models.KindBackup, "cannot read backup file", err)
	}
	stagedPath, cleanup, err := stageContent(string(data))
	if err != nil {
		return err
	}
	defer cleanup()

	spec := executor.NewCommandSpec()
	if err := spec.Add("cp", stagedPath, s.DefaultsPath); err != nil {
		return err
	}
	if err := s.addRegenCommand(spec); err != nil {
		return err
	}
	if _, err := s.Executor.RunScript(ctx, spec); err != nil {
		return err
	}

	logger.Info("backup restored")
	return s.Load()
}
