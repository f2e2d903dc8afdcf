// Package services orchestrates configuration changes: validation, backup,
// regeneration and privileged execution are sequenced here so the other
// packages stay single-purpose.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/cochaviz/grubctl/internal/backup"
	"github.com/cochaviz/grubctl/internal/config"
	"github.com/cochaviz/grubctl/internal/executor"
	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/validation"
)

// commitMarker is echoed by the apply script immediately after the
// configuration file has been overwritten. Its presence in the output of a
// failed run tells the rollback logic whether the file was already touched.
const commitMarker = "grubctl: config-written"

// GrubService owns the bootloader configuration lifecycle. Collaborators
// are plain fields so setup code and tests can wire them freely.
type GrubService struct {
	Logger       *slog.Logger
	DefaultsPath string
	// MenuPaths lists candidate menu file locations in probe order.
	MenuPaths []string
	// StateDir holds the cross-process commit lock.
	StateDir string
	// RegenArgv overrides the menu regeneration command. When empty the
	// apply script probes for update-grub, grub2-mkconfig and
	// grub-mkconfig in that order.
	RegenArgv []string
	HookPath  string

	Backups  *backup.Manager
	Executor *executor.Executor
	Hidden   *config.HiddenStore

	mu       sync.Mutex
	busy     bool
	state    State
	defaults *config.Defaults
	staged   *models.ConfigurationRecord
	menu     *config.Menu
	hidden   models.HiddenEntries
	warnings []string
}

// CommitOutcome reports what an apply operation did.
type CommitOutcome struct {
	Changed  bool
	BackupID string
	Output   string
}

func (s *GrubService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Load reads the defaults file, the boot menu and the hidden-entries store
// and resets the staged record to the on-disk state. Parser warnings are
// collected, not fatal.
func (s *GrubService) Load() error {
	defaults, err := config.LoadDefaults(s.DefaultsPath)
	if err != nil {
		return err
	}
	warnings := append([]string(nil), defaults.Warnings...)

	menu := &config.Menu{}
	if path, ok := config.FindMenuFile(s.MenuPaths); ok {
		menu, err = config.LoadMenu(path)
		if err != nil {
			return err
		}
		warnings = append(warnings, menu.Warnings...)
	} else {
		warnings = append(warnings, "no boot menu file found")
	}

	hidden := models.NewHiddenEntries()
	if s.Hidden != nil {
		hidden, err = s.Hidden.Load()
		if err != nil {
			return err
		}
		if len(menu.Entries) > 0 {
			if dropped := hidden.Reconcile(menu.Entries); len(dropped) > 0 {
				warnings = append(warnings,
					fmt.Sprintf("dropped %d hidden entries that no longer exist in the menu", len(dropped)))
			}
		}
	}

	s.mu.Lock()
	s.defaults = defaults
	s.staged = defaults.Record.Clone()
	s.menu = menu
	s.hidden = hidden
	s.warnings = warnings
	s.state = StateIdle
	s.mu.Unlock()

	s.logger().Info("configuration loaded",
		"recognized_keys", len(defaults.Record.Recognized),
		"menu_entries", len(menu.Entries),
		"warnings", len(warnings),
	)
	return nil
}

// State returns the current lifecycle state.
func (s *GrubService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Warnings returns the warnings collected by the last Load.
func (s *GrubService) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Current returns a copy of the configuration as loaded from disk.
func (s *GrubService) Current() (*models.ConfigurationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.defaults == nil {
		return nil, errNotLoaded()
	}
	return s.defaults.Record.Clone(), nil
}

// Staged returns a copy of the staged configuration.
func (s *GrubService) Staged() (*models.ConfigurationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil, errNotLoaded()
	}
	return s.staged.Clone(), nil
}

// StageField validates a single value and stores it in the staged record.
// An empty value removes the setting on the next apply. Nothing touches
// disk until Commit.
func (s *GrubService) StageField(key, value string) error {
	if _, err := validation.SanitizeParameterName(key); err != nil {
		return err
	}
	if !models.IsRecognized(key) {
		return models.ValidationError("setting %s cannot be edited by this tool", key)
	}
	normalized := value
	if value != "" {
		var err error
		normalized, err = validation.Field(key, value)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return errNotLoaded()
	}
	s.staged.Set(key, normalized)
	return nil
}

// Preview validates the staged record and returns a line diff between the
// configuration file as it is on disk and as it would be written.
func (s *GrubService) Preview() (string, error) {
	s.mu.Lock()
	if s.defaults == nil {
		s.mu.Unlock()
		return "", errNotLoaded()
	}
	staged := s.staged.Clone()
	current := s.defaults.Record.Clone()
	lines := append([]string(nil), s.defaults.Lines...)
	s.mu.Unlock()

	if err := validation.Record(staged); err != nil {
		return "", err
	}
	before := config.Generate(current, lines)
	after := config.Generate(staged, lines)
	return Diff(before, after), nil
}

// Commit applies the staged record: validate, back up, write the new file
// and regenerate the boot menu in one privileged unit, then verify the
// written file. A failure after the file was overwritten rolls back to the
// backup taken at the start.
func (s *GrubService) Commit(ctx context.Context) (*CommitOutcome, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	logger := s.logger().With("operation", uuid.New().String())

	s.mu.Lock()
	if s.defaults == nil {
		s.mu.Unlock()
		return nil, errNotLoaded()
	}
	staged := s.staged.Clone()
	current := s.defaults.Record.Clone()
	lines := append([]string(nil), s.defaults.Lines...)
	hidden := s.hidden.Clone()
	s.mu.Unlock()

	s.setState(StateValidating, logger)
	if err := validation.Record(staged); err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}

	content := config.Generate(staged, lines)
	if content == config.Generate(current, lines) {
		s.setState(StateIdle, logger)
		logger.Info("no staged changes, nothing to apply")
		return &CommitOutcome{Changed: false}, nil
	}

	s.setState(StateBackingUp, logger)
	backupRecord, err := s.Backups.Create()
	if err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}
	logger.Info("backup created", "backup_id", backupRecord.ID)

	s.setState(StateGenerating, logger)
	stagedPath, cleanup, err := stageContent(content)
	if err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}
	defer cleanup()

	spec := executor.NewCommandSpec()
	if err := spec.Add("cp", stagedPath, s.DefaultsPath); err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}
	if err := spec.Add("echo", commitMarker); err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}
	// Regeneration rebuilds the full menu, so the hidden-entries store and
	// hook go along and the hook reruns afterwards to keep hidden entries
	// hidden across the apply.
	if len(hidden) > 0 && s.Hidden != nil {
		cleanupHidden, err := s.addHiddenInstall(spec, hidden)
		if err != nil {
			s.setState(StateIdle, logger)
			return nil, err
		}
		defer cleanupHidden()
	}
	if err := s.addRegenCommand(spec); err != nil {
		s.setState(StateIdle, logger)
		return nil, err
	}
	if len(hidden) > 0 && s.Hidden != nil {
		if err := s.addHookRun(spec); err != nil {
			s.setState(StateIdle, logger)
			return nil, err
		}
	}

	s.setState(StateExecuting, logger)
	result, runErr := s.Executor.RunScript(ctx, spec)
	if runErr != nil {
		if result != nil && strings.Contains(result.Output, commitMarker) {
			return nil, s.rollback(ctx, logger, backupRecord, runErr)
		}
		// The script failed before the copy, so nothing was written.
		s.setState(StateIdle, logger)
		return nil, runErr
	}

	s.setState(StateVerifying, logger)
	applied, err := config.LoadDefaults(s.DefaultsPath)
	if err != nil {
		s.setState(StateIdle, logger)
		return nil, models.NewError(models.KindInconsistency,
			"cannot re-read the configuration after applying", err)
	}
	if !recordsEqual(applied.Record, staged) {
		s.setState(StateIdle, logger)
		return nil, models.NewError(models.KindInconsistency,
			"configuration on disk does not match the staged changes", nil)
	}

	s.mu.Lock()
	s.defaults = applied
	s.staged = applied.Record.Clone()
	s.mu.Unlock()
	s.setState(StateApplied, logger)
	logger.Info("configuration applied", "backup_id", backupRecord.ID)

	return &CommitOutcome{
		Changed:  true,
		BackupID: backupRecord.ID,
		Output:   result.Output,
	}, nil
}

// rollback restores the pre-commit backup after the configuration file was
// already overwritten. The original failure stays the primary error.
func (s *GrubService) rollback(ctx context.Context, logger *slog.Logger, record *models.BackupRecord, cause error) error {
	logger.Warn("apply failed after the configuration was written, rolling back",
		"backup_id", record.ID, "error", cause)

	if err := s.restoreFile(ctx, record); err != nil {
		s.setState(StateIdle, logger)
		return models.NewError(models.KindInconsistency,
			fmt.Sprintf("rollback failed, restore backup %s manually", record.ID),
			errors.Join(cause, err))
	}
	s.setState(StateRolledBack, logger)
	logger.Info("previous configuration restored", "backup_id", record.ID)
	return cause
}

// restoreFile writes a verified backup over the configuration file, either
// directly when running as root or through a single escalated copy.
func (s *GrubService) restoreFile(ctx context.Context, record *models.BackupRecord) error {
	if !s.Backups.Verify(record) {
		return models.NewError(models.KindBackup,
			fmt.Sprintf("backup %s failed checksum verification", record.ID), nil)
	}
	if s.Executor.RunAsRoot {
		return s.Backups.Restore(record)
	}

	data, err := os.ReadFile(record.Path)
	if err != nil {
		return models.NewError(models.KindBackup, "cannot read backup file", err)
	}
	stagedPath, cleanup, err := stageContent(string(data))
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = s.Executor.RunDirect(ctx, "cp", stagedPath, s.DefaultsPath)
	return err
}

// acquire takes the in-process busy flag and the cross-process commit lock.
// The returned release function undoes both.
func (s *GrubService) acquire() (func(), error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, models.NewError(models.KindBusy, "another operation is already in progress", nil)
	}
	s.busy = true
	s.mu.Unlock()

	releaseBusy := func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}

	if s.StateDir == "" {
		return releaseBusy, nil
	}
	if err := os.MkdirAll(s.StateDir, 0o755); err != nil {
		releaseBusy()
		return nil, models.NewError(models.KindConfig, "cannot create state directory", err)
	}

	lock := flock.New(filepath.Join(s.StateDir, "commit.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		releaseBusy()
		return nil, models.NewError(models.KindBusy, "cannot acquire the commit lock", err)
	}
	if !locked {
		releaseBusy()
		return nil, models.NewError(models.KindBusy, "another process is applying changes", nil)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger().Warn("cannot release commit lock", "error", err)
		}
		releaseBusy()
	}, nil
}

func (s *GrubService) setState(next State, logger *slog.Logger) {
	s.mu.Lock()
	previous := s.state
	s.state = next
	s.mu.Unlock()
	logger.Debug("state transition", "from", previous.String(), "to", next.String())
}

// addRegenCommand appends the menu regeneration step. Without an override
// the script probes the regeneration tools the supported distributions
// ship, in a fixed order.
func (s *GrubService) addRegenCommand(spec *executor.CommandSpec) error {
	if len(s.RegenArgv) > 0 {
		return spec.Add(s.RegenArgv...)
	}

	menuPath := "/boot/grub/grub.cfg"
	if len(s.MenuPaths) > 0 {
		menuPath = s.MenuPaths[0]
	}
	clean, err := validation.SanitizePath(menuPath)
	if err != nil {
		return err
	}
	spec.AddStatic(fmt.Sprintf(`if command -v update-grub >/dev/null 2>&1; then
	update-grub
elif command -v grub2-mkconfig >/dev/null 2>&1; then
	grub2-mkconfig -o %s
elif command -v grub-mkconfig >/dev/null 2>&1; then
	grub-mkconfig -o %s
else
	echo 'no boot menu regeneration tool found' >&2
	exit 1
fi`, clean, clean))
	return nil
}

func errNotLoaded() error {
	return models.NewError(models.KindConfig, "configuration has not been loaded", nil)
}

// recordsEqual compares what the written file should contain with what a
// re-parse of it produced. A staged empty value means the setting was
// removed, so it has no counterpart in the parsed record.
func recordsEqual(applied, staged *models.ConfigurationRecord) bool {
	expected := map[string]string{}
	for key, value := range staged.Recognized {
		if value != "" {
			expected[key] = value
		}
	}
	return maps.Equal(applied.Recognized, expected) &&
		maps.Equal(applied.Unrecognized, staged.Unrecognized)
}

// stageContent writes content to a private temporary file that a later
// script step copies into place.
func stageContent(content string) (string, func(), error) {
	f, err := os.CreateTemp("", "grubctl-stage-*")
	if err != nil {
		return "", nil, models.NewError(models.KindConfig, "cannot stage configuration content", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, models.NewError(models.KindConfig, "cannot stage configuration content", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, models.NewError(models.KindConfig, "cannot stage configuration content", err)
	}
	return path, cleanup, nil
}
