package config

import (
	"strings"
	"testing"
)

const sampleMenu = `#
# DO NOT EDIT THIS FILE
#
set default="0"

menuentry 'Ubuntu' --class ubuntu --class gnu-linux {
	recordfail
	linux	/boot/vmlinuz-6.8.0-45-generic root=UUID=abcd ro quiet splash
	initrd	/boot/initrd.img-6.8.0-45-generic
}
submenu 'Advanced options for Ubuntu' {
	menuentry 'Ubuntu, with Linux 6.8.0-45-generic' {
		linux	/boot/vmlinuz-6.8.0-45-generic root=UUID=abcd ro
	}
	menuentry 'Ubuntu, with Linux 6.8.0-45-generic (recovery mode)' {
		linux	/boot/vmlinuz-6.8.0-45-generic root=UUID=abcd ro recovery nomodeset
	}
}
menuentry "Windows Boot Manager (on /dev/nvme0n1p1)" --class windows {
	fwsetup --is-supported
}
menuentry 'System shutdown' {
	halt
}
`

func TestParseMenu(t *testing.T) {
	t.Parallel()

	menu := ParseMenu(sampleMenu)

	wantTitles := []string{
		"Ubuntu",
		"Advanced options for Ubuntu",
		"Ubuntu, with Linux 6.8.0-45-generic",
		"Ubuntu, with Linux 6.8.0-45-generic (recovery mode)",
		"Windows Boot Manager (on /dev/nvme0n1p1)",
		"System shutdown",
	}
	if len(menu.Entries) != len(wantTitles) {
		t.Fatalf("parsed %d entries, want %d: %+v", len(menu.Entries), len(wantTitles), menu.Entries)
	}
	for i, want := range wantTitles {
		if menu.Entries[i].Title != want {
			t.Errorf("entry %d title = %q, want %q", i, menu.Entries[i].Title, want)
		}
	}

	// Submenu members are flattened but carry the header as their parent.
	header := menu.Entries[1]
	if !header.Submenu || header.Parent != "" {
		t.Errorf("submenu header = %+v, want top-level submenu", header)
	}
	if menu.Entries[2].Parent != header.ID || menu.Entries[3].Parent != header.ID {
		t.Error("nested entries not linked to their submenu header")
	}
	if menu.Entries[2].Submenu || menu.Entries[3].Submenu {
		t.Error("nested entries wrongly flagged as headers")
	}
	if menu.Entries[4].Submenu || menu.Entries[4].Parent != "" {
		t.Error("top-level entry after submenu wrongly flagged")
	}

	if len(menu.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", menu.Warnings)
	}
}

func TestParseMenuDuplicateTitles(t *testing.T) {
	t.Parallel()

	content := `menuentry 'Linux' {
	linux /boot/vmlinuz-a
}
menuentry 'Linux' {
	linux /boot/vmlinuz-b
}
`
	menu := ParseMenu(content)

	// Later entry wins; the ambiguity is surfaced, never silent.
	if len(menu.Entries) != 1 {
		t.Fatalf("parsed %d entries, want 1 after collision", len(menu.Entries))
	}
	if len(menu.Warnings) != 1 || !strings.Contains(menu.Warnings[0], "ambiguous") {
		t.Fatalf("warnings = %v, want one ambiguity warning", menu.Warnings)
	}
}

func TestEntryIDStability(t *testing.T) {
	t.Parallel()

	a := EntryID("Ubuntu, with Linux 6.8.0-45-generic")
	b := EntryID("Ubuntu, with Linux 6.8.0-45-generic")
	if a != b {
		t.Fatalf("identifier not deterministic: %q != %q", a, b)
	}
	if EntryID("Ubuntu") == EntryID("ubuntu") {
		t.Fatal("identifiers must be title-sensitive")
	}
	if !strings.HasPrefix(a, "ubuntu-with-linux-6-8-0-45-generic-") {
		t.Fatalf("identifier %q does not start with the slug", a)
	}

	// Titles with no usable characters still get an identifier.
	if got := EntryID("***"); !strings.HasPrefix(got, "entry-") {
		t.Fatalf("EntryID(\"***\") = %q", got)
	}
}
