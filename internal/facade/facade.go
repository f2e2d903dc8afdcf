// Package facade is the single entry point the command layer talks to. It
// translates user-facing field names to configuration keys and folds errors
// into operation results with presentable messages.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/services"
)

// fieldKeys maps the short field names of the command surface to
// configuration keys.
var fieldKeys = map[string]string{
	"timeout":         models.KeyTimeout,
	"default":         models.KeyDefaultEntry,
	"cmdline":         models.KeyCmdline,
	"gfxmode":         models.KeyGfxMode,
	"terminal":        models.KeyTerminalOutput,
	"theme":           models.KeyTheme,
	"background":      models.KeyBackground,
	"color-normal":    models.KeyColorNormal,
	"color-highlight": models.KeyColorHighlight,
}

// FieldNames returns the editable field names, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fieldKeys))
	for name := range fieldKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyForField resolves a field name or a raw configuration key.
func KeyForField(name string) (string, bool) {
	if key, ok := fieldKeys[name]; ok {
		return key, true
	}
	if models.IsRecognized(name) {
		return name, true
	}
	return "", false
}

// Setting pairs a field with its on-disk and staged values.
type Setting struct {
	Field   string
	Key     string
	Value   string
	Staged  string
	Pending bool
}

// Facade wraps the service with the vocabulary of the command surface.
type Facade struct {
	Logger  *slog.Logger
	Service *services.GrubService
}

func New(service *services.GrubService, logger *slog.Logger) *Facade {
	return &Facade{Logger: logger, Service: service}
}

// Load reads the configuration, menu and hidden-entries store.
func (f *Facade) Load() error {
	return f.Service.Load()
}

// Warnings returns the warnings collected during the last Load.
func (f *Facade) Warnings() []string {
	return f.Service.Warnings()
}

// State names the current lifecycle state.
func (f *Facade) State() string {
	return f.Service.State().String()
}

// Settings lists every editable field with its current and staged values,
// in a fixed order.
func (f *Facade) Settings() ([]Setting, error) {
	current, err := f.Service.Current()
	if err != nil {
		return nil, err
	}
	staged, err := f.Service.Staged()
	if err != nil {
		return nil, err
	}

	fieldOf := make(map[string]string, len(fieldKeys))
	for field, key := range fieldKeys {
		fieldOf[key] = field
	}

	var settings []Setting
	for _, key := range models.RecognizedKeys() {
		value, _ := current.Get(key)
		stagedValue, _ := staged.Get(key)
		settings = append(settings, Setting{
			Field:   fieldOf[key],
			Key:     key,
			Value:   value,
			Staged:  stagedValue,
			Pending: stagedValue != value,
		})
	}
	return settings, nil
}

// Set stages a new value for a field. The value is validated immediately;
// nothing is written until Apply.
func (f *Facade) Set(field, value string) models.OperationResult {
	key, ok := KeyForField(field)
	if !ok {
		return models.ResultFailure(
			fmt.Sprintf("unknown setting %q, expected one of: %s", field, strings.Join(FieldNames(), ", ")),
			nil)
	}
	if err := f.Service.StageField(key, value); err != nil {
		return models.ResultFailure(fmt.Sprintf("invalid value for %s", field), err)
	}
	if value == "" {
		return models.ResultOK(fmt.Sprintf("%s will be removed on apply", field))
	}
	return models.ResultOK(fmt.Sprintf("%s staged, run apply to write it", field))
}

// Preview returns a diff between the configuration on disk and the staged
// configuration.
func (f *Facade) Preview() (string, error) {
	return f.Service.Preview()
}

// Apply validates and writes the staged configuration, backing the old one
// up and regenerating the boot menu.
func (f *Facade) Apply(ctx context.Context) models.OperationResult {
	outcome, err := f.Service.Commit(ctx)
	if err != nil {
		return models.ResultFailure("configuration not applied", err)
	}
	if !outcome.Changed {
		return models.ResultOK("nothing to apply, configuration is unchanged")
	}
	result := models.ResultOK("configuration applied and boot menu regenerated")
	result.Detail = fmt.Sprintf("backup %s", outcome.BackupID)
	return result
}

// Entries lists the boot menu entries with their hidden flags.
func (f *Facade) Entries() ([]models.BootEntry, error) {
	return f.Service.Entries()
}

// Hide removes a menu entry from the visible boot menu.
func (f *Facade) Hide(ctx context.Context, id string) models.OperationResult {
	if err := f.Service.HideEntry(ctx, id); err != nil {
		return models.ResultFailure(fmt.Sprintf("cannot hide entry %s", id), err)
	}
	return models.ResultOK(fmt.Sprintf("entry %s hidden", id))
}

// Show makes a hidden menu entry visible again.
func (f *Facade) Show(ctx context.Context, id string) models.OperationResult {
	if err := f.Service.ShowEntry(ctx, id); err != nil {
		return models.ResultFailure(fmt.Sprintf("cannot show entry %s", id), err)
	}
	return models.ResultOK(fmt.Sprintf("entry %s visible again", id))
}

// Backups lists all configuration backups, newest first.
func (f *Facade) Backups() ([]*models.BackupRecord, error) {
	return f.Service.ListBackups()
}

// VerifyBackup checks one backup against its recorded checksum.
func (f *Facade) VerifyBackup(id string) models.OperationResult {
	ok, err := f.Service.VerifyBackup(id)
	if err != nil {
		return models.ResultFailure(fmt.Sprintf("cannot verify backup %s", id), err)
	}
	if !ok {
		return models.ResultFailure(fmt.Sprintf("backup %s failed checksum verification", id), nil)
	}
	return models.ResultOK(fmt.Sprintf("backup %s verified", id))
}

// Restore replaces the live configuration with a backup.
func (f *Facade) Restore(ctx context.Context, id string) models.OperationResult {
	if err := f.Service.RestoreBackup(ctx, id); err != nil {
		return models.ResultFailure(fmt.Sprintf("cannot restore backup %s", id), err)
	}
	return models.ResultOK(fmt.Sprintf("backup %s restored and boot menu regenerated", id))
}
