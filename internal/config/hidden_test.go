package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cochaviz/grubctl/internal/models"
)

func TestHiddenStoreRoundTrip(t *testing.T) {
	t.Parallel()

	set := models.NewHiddenEntries()
	set.Add(EntryID("System shutdown"), "System shutdown")
	set.Add(EntryID("Memory test (memtest86+)"), "Memory test (memtest86+)")

	data, err := RenderHiddenEntries(set)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "hidden-entries.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	store := &HiddenStore{Path: path}
	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(loaded))
	}
	if !loaded.Has(EntryID("System shutdown")) {
		t.Fatal("round trip lost an entry")
	}
}

func TestHiddenStoreMissingFile(t *testing.T) {
	t.Parallel()

	store := &HiddenStore{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	set, err := store.Load()
	if err != nil {
		t.Fatalf("missing store must mean empty set, got %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("missing store returned %d entries", len(set))
	}
}

func TestHiddenStoreCorrupted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hidden-entries.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &HiddenStore{Path: path}
	if _, err := store.Load(); !models.IsKind(err, models.KindConfig) {
		t.Fatalf("corrupted store error = %v, want config kind", err)
	}
}

func TestFilterMenu(t *testing.T) {
	t.Parallel()

	lines := strings.Split(sampleMenu, "\n")
	hidden := map[string]struct{}{
		"Windows Boot Manager (on /dev/nvme0n1p1)": {},
		"Advanced options for Ubuntu":              {},
	}

	filtered := strings.Join(FilterMenu(lines, hidden), "\n")

	if strings.Contains(filtered, "Windows Boot Manager") {
		t.Errorf("hidden entry still present:\n%s", filtered)
	}
	if strings.Contains(filtered, "Advanced options") || strings.Contains(filtered, "recovery mode") {
		t.Errorf("hidden submenu body still present:\n%s", filtered)
	}
	if !strings.Contains(filtered, "menuentry 'Ubuntu'") {
		t.Errorf("visible entry lost:\n%s", filtered)
	}
	if !strings.Contains(filtered, "System shutdown") {
		t.Errorf("entry after hidden block lost:\n%s", filtered)
	}
}

func TestReconcileDropsStaleIdentifiers(t *testing.T) {
	t.Parallel()

	menu := ParseMenu(sampleMenu)
	set := models.NewHiddenEntries()
	set.Add(menu.Entries[0].ID, menu.Entries[0].Title)
	set.Add("removed-entry-deadbeef", "Removed Entry")

	dropped := set.Reconcile(menu.Entries)

	if len(dropped) != 1 || dropped[0] != "removed-entry-deadbeef" {
		t.Fatalf("dropped = %v, want the stale identifier", dropped)
	}
	if !set.Has(menu.Entries[0].ID) {
		t.Fatal("live identifier was dropped")
	}
}

func TestHookScriptShape(t *testing.T) {
	t.Parallel()

	script := HookScript("/etc/grubctl/hidden-entries.yaml", []string{"/boot/grub/grub.cfg", "/boot/grub2/grub.cfg"})

	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Error("hook missing shebang")
	}
	if !strings.Contains(script, "'/etc/grubctl/hidden-entries.yaml'") {
		t.Error("hook missing quoted store path")
	}
	if !strings.Contains(script, "'/boot/grub/grub.cfg' '/boot/grub2/grub.cfg'") {
		t.Error("hook missing menu candidates")
	}
	if !strings.Contains(script, "set -eu") {
		t.Error("hook must fail closed")
	}
}
