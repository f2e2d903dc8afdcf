package setup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// ConfigDir holds the system-wide state of the tool: the hidden-entries
// store and the optional settings file.
var ConfigDir = "/etc/grubctl"

// Paths collects every location and tunable the tool works with. The zero
// value is not usable; start from DefaultPaths or LoadPaths.
type Paths struct {
	DefaultsPath    string
	MenuPaths       []string
	BackupDir       string
	StateDir        string
	HiddenStorePath string
	HookPath        string
	Retain          int
	CommandTimeout  time.Duration
	// RegenArgv overrides the boot menu regeneration command.
	RegenArgv []string
}

// DefaultPaths returns the standard locations. Backups and lock state go to
// system directories when running as root, and to the invoking user's home
// otherwise, so an unprivileged preview session never needs escalation.
func DefaultPaths() Paths {
	paths := Paths{
		DefaultsPath:    "/etc/default/grub",
		MenuPaths:       []string{"/boot/grub/grub.cfg", "/boot/grub2/grub.cfg"},
		BackupDir:       "/var/backups/grubctl",
		StateDir:        "/var/lib/grubctl",
		HiddenStorePath: filepath.Join(ConfigDir, "hidden-entries.yaml"),
		HookPath:        "/etc/kernel/postinst.d/zz-grubctl-hide",
	}
	if os.Geteuid() != 0 {
		if home, err := os.UserHomeDir(); err == nil {
			paths.BackupDir = filepath.Join(home, ".local", "share", "grubctl", "backups")
			paths.StateDir = filepath.Join(home, ".local", "state", "grubctl")
		}
	}
	return paths
}

// settingsFile is the optional on-disk override for Paths.
type settingsFile struct {
	DefaultsPath          string   `yaml:"defaults_path"`
	MenuPaths             []string `yaml:"menu_paths"`
	BackupDir             string   `yaml:"backup_dir"`
	BackupRetain          int      `yaml:"backup_retain"`
	CommandTimeoutSeconds int      `yaml:"command_timeout_seconds"`
	RegenCommand          []string `yaml:"regen_command"`
}

// settingsCandidates lists the settings files in override order: the user
// file wins over the system one.
func settingsCandidates() []string {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "grubctl", "settings.yaml"))
	}
	return append(candidates, filepath.Join(ConfigDir, "settings.yaml"))
}

// LoadPaths returns the default paths with the first existing settings file
// applied on top. A missing settings file is not an error.
func LoadPaths() (Paths, error) {
	paths := DefaultPaths()

	for _, candidate := range settingsCandidates() {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return paths, fmt.Errorf("cannot read settings file %s: %w", candidate, err)
		}

		var settings settingsFile
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return paths, fmt.Errorf("settings file %s is malformed: %w", candidate, err)
		}
		paths.apply(settings)
		getLogger().Debug("settings file applied", "path", candidate)
		break
	}
	return paths, nil
}

func (p *Paths) apply(settings settingsFile) {
	if settings.DefaultsPath != "" {
		p.DefaultsPath = settings.DefaultsPath
	}
	if len(settings.MenuPaths) > 0 {
		p.MenuPaths = settings.MenuPaths
	}
	if settings.BackupDir != "" {
		p.BackupDir = settings.BackupDir
	}
	if settings.BackupRetain > 0 {
		p.Retain = settings.BackupRetain
	}
	if settings.CommandTimeoutSeconds > 0 {
		p.CommandTimeout = time.Duration(settings.CommandTimeoutSeconds) * time.Second
	}
	if len(settings.RegenCommand) > 0 {
		p.RegenArgv = settings.RegenCommand
	}
}

// Verify checks that the configuration file this tool manages exists and is
// readable by the current process.
func Verify(paths Paths) error {
	if _, err := os.Stat(paths.DefaultsPath); err != nil {
		return fmt.Errorf("configuration file %s does not exist", paths.DefaultsPath)
	}
	if err := unix.Access(paths.DefaultsPath, unix.R_OK); err != nil {
		return fmt.Errorf("configuration file %s is not readable: %w", paths.DefaultsPath, err)
	}
	return nil
}
