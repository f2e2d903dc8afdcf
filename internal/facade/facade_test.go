package facade

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cochaviz/grubctl/internal/backup"
	"github.com/cochaviz/grubctl/internal/config"
	"github.com/cochaviz/grubctl/internal/executor"
	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/services"
)

const testDefaults = `GRUB_DEFAULT=0
GRUB_TIMEOUT=5
GRUB_CMDLINE_LINUX_DEFAULT="quiet splash"
`

const testMenu = `menuentry 'Linux' {
	linux /boot/vmlinuz
}
menuentry 'Recovery' {
	linux /boot/vmlinuz recovery
}
`

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	dir := t.TempDir()

	defaultsPath := filepath.Join(dir, "grub")
	if err := os.WriteFile(defaultsPath, []byte(testDefaults), 0o644); err != nil {
		t.Fatal(err)
	}
	menuPath := filepath.Join(dir, "grub.cfg")
	if err := os.WriteFile(menuPath, []byte(testMenu), 0o644); err != nil {
		t.Fatal(err)
	}

	exec := executor.New(nil)
	exec.RunAsRoot = true

	f := New(&services.GrubService{
		DefaultsPath: defaultsPath,
		MenuPaths:    []string{menuPath},
		StateDir:     filepath.Join(dir, "state"),
		RegenArgv:    []string{"true"},
		HookPath:     filepath.Join(dir, "hooks", "zz-hide"),
		Backups: &backup.Manager{
			SourcePath: defaultsPath,
			Dir:        filepath.Join(dir, "backups"),
		},
		Executor: exec,
		Hidden:   &config.HiddenStore{Path: filepath.Join(dir, "hidden.yaml")},
	}, nil)
	if err := f.Load(); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestSetStagesByFieldName(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	if result := f.Set("timeout", "15"); !result.Success {
		t.Fatalf("Set failed: %s (%s)", result.Message, result.Detail)
	}

	settings, err := f.Settings()
	if err != nil {
		t.Fatal(err)
	}
	for _, setting := range settings {
		if setting.Key != models.KeyTimeout {
			continue
		}
		if setting.Staged != "15" || !setting.Pending {
			t.Fatalf("setting = %+v, want staged pending value 15", setting)
		}
		if setting.Value != "5" {
			t.Fatalf("setting = %+v, on-disk value must stay 5 until apply", setting)
		}
		return
	}
	t.Fatal("timeout setting not listed")
}

func TestSetRejectsOutOfRangeTimeout(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	result := f.Set("timeout", "999")
	if result.Success {
		t.Fatal("out-of-range timeout accepted")
	}
	if !strings.Contains(result.Detail, "between 0 and 300") {
		t.Fatalf("detail = %q, want the allowed range", result.Detail)
	}
}

func TestSetRejectsInjectionInKernelParams(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	for _, value := range []string{"quiet; rm -rf /", "quiet $(reboot)", "quiet|id"} {
		if result := f.Set("cmdline", value); result.Success {
			t.Fatalf("Set(cmdline, %q) accepted", value)
		}
	}
}

func TestSetUnknownFieldListsAlternatives(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	result := f.Set("bogus", "1")
	if result.Success {
		t.Fatal("unknown field accepted")
	}
	if !strings.Contains(result.Message, "timeout") {
		t.Fatalf("message = %q, want the list of valid fields", result.Message)
	}
}

func TestSetAcceptsRawKey(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	if result := f.Set(models.KeyGfxMode, "1024x768"); !result.Success {
		t.Fatalf("raw key rejected: %s (%s)", result.Message, result.Detail)
	}
}

func TestApplyRoundTrip(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)
	ctx := context.Background()

	if result := f.Set("timeout", "15"); !result.Success {
		t.Fatal(result.Message)
	}

	preview, err := f.Preview()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(preview, `+ GRUB_TIMEOUT="15"`) {
		t.Fatalf("preview misses the staged change:\n%s", preview)
	}

	result := f.Apply(ctx)
	if !result.Success {
		t.Fatalf("apply failed: %s (%s)", result.Message, result.Detail)
	}
	if !strings.Contains(result.Detail, "backup ") {
		t.Fatalf("detail = %q, want the backup id", result.Detail)
	}

	// A second apply has nothing left to do.
	if result := f.Apply(ctx); !result.Success || !strings.Contains(result.Message, "nothing to apply") {
		t.Fatalf("second apply = %+v, want a no-op", result)
	}
}

func TestHideShowAndRestoreFlow(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)
	ctx := context.Background()

	entries, err := f.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	recovery := entries[1]
	if result := f.Hide(ctx, recovery.ID); !result.Success {
		t.Fatalf("hide failed: %s (%s)", result.Message, result.Detail)
	}
	if result := f.Hide(ctx, entries[0].ID); result.Success {
		t.Fatal("hiding the last visible entry succeeded")
	}
	if result := f.Show(ctx, recovery.ID); !result.Success {
		t.Fatalf("show failed: %s (%s)", result.Message, result.Detail)
	}

	// Change, then restore the pre-change state from the backup.
	if result := f.Set("timeout", "60"); !result.Success {
		t.Fatal(result.Message)
	}
	apply := f.Apply(ctx)
	if !apply.Success {
		t.Fatalf("apply failed: %s (%s)", apply.Message, apply.Detail)
	}
	backupID := strings.TrimPrefix(apply.Detail, "backup ")

	if result := f.VerifyBackup(backupID); !result.Success {
		t.Fatalf("verify failed: %s", result.Message)
	}
	if result := f.Restore(ctx, backupID); !result.Success {
		t.Fatalf("restore failed: %s (%s)", result.Message, result.Detail)
	}

	settings, err := f.Settings()
	if err != nil {
		t.Fatal(err)
	}
	for _, setting := range settings {
		if setting.Key == models.KeyTimeout && setting.Value != "5" {
			t.Fatalf("timeout after restore = %q, want 5", setting.Value)
		}
	}
}

func TestRestoreUnknownBackupFails(t *testing.T) {
	t.Parallel()
	f := newTestFacade(t)

	if result := f.Restore(context.Background(), "nope"); result.Success {
		t.Fatal("restoring a nonexistent backup succeeded")
	}
}

func TestFieldNamesStable(t *testing.T) {
	t.Parallel()

	names := FieldNames()
	if len(names) != len(fieldKeys) {
		t.Fatalf("names = %d, want %d", len(names), len(fieldKeys))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
	for _, name := range names {
		if _, ok := KeyForField(name); !ok {
			t.Fatalf("field %s does not resolve", name)
		}
	}
}
