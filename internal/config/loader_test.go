package config

import (
	"strings"
	"testing"

	"github.com/cochaviz/grubctl/internal/models"
)

const sampleDefaults = `# If you change this file, run 'update-grub' afterwards.
GRUB_DEFAULT=0
GRUB_TIMEOUT=5
GRUB_DISTRIBUTOR=` + "`lsb_release -i -s 2> /dev/null || echo Debian`" + `
GRUB_CMDLINE_LINUX_DEFAULT="quiet splash"
GRUB_CMDLINE_LINUX=""
#GRUB_GFXMODE=640x480
export GRUB_COLOR_NORMAL="light-gray/black"

# Uncomment to disable graphical terminal
#GRUB_TERMINAL=console
`

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	defaults := ParseDefaults(sampleDefaults)

	if len(defaults.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", defaults.Warnings)
	}

	wantRecognized := map[string]string{
		models.KeyDefaultEntry: "0",
		models.KeyTimeout:      "5",
		models.KeyCmdline:      "quiet splash",
		models.KeyColorNormal:  "light-gray/black",
	}
	for key, want := range wantRecognized {
		if got := defaults.Record.Recognized[key]; got != want {
			t.Errorf("Recognized[%s] = %q, want %q", key, got, want)
		}
	}

	// Commented-out keys are not loaded.
	if _, ok := defaults.Record.Recognized[models.KeyGfxMode]; ok {
		t.Error("commented GRUB_GFXMODE was loaded")
	}

	// Unrecognized keys are retained opaquely.
	if got := defaults.Record.Unrecognized["GRUB_DISTRIBUTOR"]; !strings.Contains(got, "lsb_release") {
		t.Errorf("Unrecognized[GRUB_DISTRIBUTOR] = %q", got)
	}
	if got, ok := defaults.Record.Unrecognized["GRUB_CMDLINE_LINUX"]; !ok || got != "" {
		t.Errorf("Unrecognized[GRUB_CMDLINE_LINUX] = %q, ok=%v, want empty string present", got, ok)
	}
}

func TestParseDefaultsQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line  string
		key   string
		value string
	}{
		{`GRUB_CMDLINE_LINUX_DEFAULT="quiet splash acpi=off"`, models.KeyCmdline, "quiet splash acpi=off"},
		{`GRUB_TIMEOUT=5 # seconds`, models.KeyTimeout, "5"},
		{`GRUB_BACKGROUND="/boot/grub/img with space.png"`, models.KeyBackground, "/boot/grub/img with space.png"},
		{`GRUB_THEME='/usr/share/themes/a.txt'`, models.KeyTheme, "/usr/share/themes/a.txt"},
		{`GRUB_DISTRIBUTOR="has # hash"`, "GRUB_DISTRIBUTOR", "has # hash"},
	}

	for _, tt := range tests {
		defaults := ParseDefaults(tt.line + "\n")
		got, ok := defaults.Record.Get(tt.key)
		if !ok {
			t.Fatalf("ParseDefaults(%q): key %s missing", tt.line, tt.key)
		}
		if got != tt.value {
			t.Fatalf("ParseDefaults(%q): value = %q, want %q", tt.line, got, tt.value)
		}
	}
}

func TestParseDefaultsMalformedLines(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		"GRUB_TIMEOUT=5",
		"THIS LINE HAS NO SEPARATOR",
		`GRUB_GFXMODE="unterminated`,
		"GRUB_DEFAULT=0",
	}, "\n") + "\n"

	defaults := ParseDefaults(content)

	if len(defaults.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", defaults.Warnings)
	}
	// Malformed lines must not block the rest of the file.
	if got := defaults.Record.Recognized[models.KeyTimeout]; got != "5" {
		t.Errorf("Recognized[GRUB_TIMEOUT] = %q, want 5", got)
	}
	if got := defaults.Record.Recognized[models.KeyDefaultEntry]; got != "0" {
		t.Errorf("Recognized[GRUB_DEFAULT] = %q, want 0", got)
	}
	if _, ok := defaults.Record.Recognized[models.KeyGfxMode]; ok {
		t.Error("line with unterminated quote was loaded")
	}
}

func TestLoadDefaultsMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadDefaults("/nonexistent/grub-defaults")
	if err == nil {
		t.Fatal("LoadDefaults accepted a missing file")
	}
	if !models.IsKind(err, models.KindConfig) {
		t.Fatalf("LoadDefaults error = %v, want config kind", err)
	}
}
