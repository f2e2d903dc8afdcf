package setup

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestSettingsOverlay(t *testing.T) {
	t.Parallel()

	const raw = `
defaults_path: /etc/default/grub.test
backup_retain: 5
command_timeout_seconds: 30
regen_command: [update-grub]
`
	var settings settingsFile
	if err := yaml.Unmarshal([]byte(raw), &settings); err != nil {
		t.Fatal(err)
	}

	paths := DefaultPaths()
	paths.apply(settings)

	if paths.DefaultsPath != "/etc/default/grub.test" {
		t.Fatalf("DefaultsPath = %q", paths.DefaultsPath)
	}
	if paths.Retain != 5 {
		t.Fatalf("Retain = %d", paths.Retain)
	}
	if paths.CommandTimeout != 30*time.Second {
		t.Fatalf("CommandTimeout = %s", paths.CommandTimeout)
	}
	if len(paths.RegenArgv) != 1 || paths.RegenArgv[0] != "update-grub" {
		t.Fatalf("RegenArgv = %v", paths.RegenArgv)
	}
	// Untouched fields keep their defaults.
	if len(paths.MenuPaths) != 2 {
		t.Fatalf("MenuPaths = %v", paths.MenuPaths)
	}
}

func TestEmptySettingsKeepDefaults(t *testing.T) {
	t.Parallel()

	paths := DefaultPaths()
	expected := paths
	paths.apply(settingsFile{})

	if paths.DefaultsPath != expected.DefaultsPath || paths.BackupDir != expected.BackupDir {
		t.Fatalf("empty settings changed defaults: %+v", paths)
	}
}
