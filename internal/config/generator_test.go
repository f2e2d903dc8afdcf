package config

import (
	"strings"
	"testing"

	"github.com/cochaviz/grubctl/internal/models"
)

func TestGenerateRoundTrip(t *testing.T) {
	t.Parallel()

	// Parsing and regenerating without changes must reproduce the file,
	// including comments, blank lines, quoting style, and unrecognized keys.
	defaults := ParseDefaults(sampleDefaults)
	got := Generate(defaults.Record, defaults.Lines)
	if got != sampleDefaults {
		t.Fatalf("round trip altered the file:\n--- want ---\n%s\n--- got ---\n%s", sampleDefaults, got)
	}
}

func TestGenerateRewritesChangedKeys(t *testing.T) {
	t.Parallel()

	defaults := ParseDefaults(sampleDefaults)
	defaults.Record.Set(models.KeyTimeout, "10")
	defaults.Record.Set(models.KeyCmdline, "quiet")

	got := Generate(defaults.Record, defaults.Lines)

	if !strings.Contains(got, `GRUB_TIMEOUT="10"`) {
		t.Errorf("timeout not rewritten:\n%s", got)
	}
	if !strings.Contains(got, `GRUB_CMDLINE_LINUX_DEFAULT="quiet"`) {
		t.Errorf("cmdline not rewritten:\n%s", got)
	}
	if strings.Contains(got, "quiet splash") {
		t.Errorf("old cmdline still present:\n%s", got)
	}
	// Untouched lines keep their exact bytes.
	if !strings.Contains(got, "GRUB_DISTRIBUTOR=`lsb_release -i -s 2> /dev/null || echo Debian`") {
		t.Errorf("unrecognized line altered:\n%s", got)
	}
	if !strings.Contains(got, "# Uncomment to disable graphical terminal") {
		t.Errorf("comment dropped:\n%s", got)
	}
}

func TestGenerateAppendsMissingKeys(t *testing.T) {
	t.Parallel()

	defaults := ParseDefaults("GRUB_TIMEOUT=5\n")
	defaults.Record.Set(models.KeyGfxMode, "1024x768")
	defaults.Record.Set(models.KeyColorHighlight, "white/black")

	got := Generate(defaults.Record, defaults.Lines)

	if !strings.Contains(got, `GRUB_GFXMODE="1024x768"`) {
		t.Errorf("missing key not appended:\n%s", got)
	}
	// Color keys always carry the export prefix.
	if !strings.Contains(got, `export GRUB_COLOR_HIGHLIGHT="white/black"`) {
		t.Errorf("color key not exported:\n%s", got)
	}
}

func TestGenerateDropsEmptyValues(t *testing.T) {
	t.Parallel()

	defaults := ParseDefaults("GRUB_TIMEOUT=5\nGRUB_BACKGROUND=\"/boot/grub/bg.png\"\n")
	defaults.Record.Set(models.KeyBackground, "")

	got := Generate(defaults.Record, defaults.Lines)

	if strings.Contains(got, "GRUB_BACKGROUND") {
		t.Errorf("emptied key still present:\n%s", got)
	}
	if !strings.Contains(got, "GRUB_TIMEOUT=5") {
		t.Errorf("unrelated line lost:\n%s", got)
	}
}

func TestGenerateReactivatesCommentedKey(t *testing.T) {
	t.Parallel()

	content := "GRUB_TIMEOUT=5\n#GRUB_GFXMODE=640x480\n"
	defaults := ParseDefaults(content)
	defaults.Record.Set(models.KeyGfxMode, "1024x768")

	got := Generate(defaults.Record, defaults.Lines)

	if !strings.Contains(got, `GRUB_GFXMODE="1024x768"`) {
		t.Errorf("commented key not reactivated:\n%s", got)
	}
	if strings.Contains(got, "#GRUB_GFXMODE") {
		t.Errorf("stale comment left behind:\n%s", got)
	}
	// Must not be appended a second time.
	if strings.Count(got, "GRUB_GFXMODE") != 1 {
		t.Errorf("key emitted more than once:\n%s", got)
	}
}

func TestGenerateLeavesCommentedDuplicateAlone(t *testing.T) {
	t.Parallel()

	content := "GRUB_GFXMODE=auto\n#GRUB_GFXMODE=640x480\n"
	defaults := ParseDefaults(content)
	defaults.Record.Set(models.KeyGfxMode, "1920x1080")

	got := Generate(defaults.Record, defaults.Lines)

	if !strings.Contains(got, `GRUB_GFXMODE="1920x1080"`) {
		t.Errorf("active key not rewritten:\n%s", got)
	}
	if !strings.Contains(got, "#GRUB_GFXMODE=640x480") {
		t.Errorf("commented duplicate was touched:\n%s", got)
	}
}
