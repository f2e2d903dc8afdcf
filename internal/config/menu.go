package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/cochaviz/grubctl/internal/models"
)

// Menu is the parsed boot menu: an ordered, flattened list of entries plus
// warnings about structural ambiguities. The parse is read-only and tolerant;
// the menu file is machine-generated and never edited by this tool.
type Menu struct {
	Entries  []models.BootEntry
	Warnings []string
}

// FindMenuFile returns the first existing path from candidates. The order is
// fixed on purpose: systems can carry both /boot/grub and /boot/grub2 trees,
// and picking the newest file can select an unused menu.
func FindMenuFile(candidates []string) (string, bool) {
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// LoadMenu reads and parses the menu file at path.
func LoadMenu(path string) (*Menu, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.KindConfig, fmt.Sprintf("cannot read menu file %s", path), err)
	}
	return ParseMenu(string(content)), nil
}

// ParseMenu extracts boot entries from menu file content. Entries inside
// submenus are listed flattened, with the enclosing header recorded as their
// parent. Identifiers are derived from the title, so two entries with
// identical titles collapse to one identifier: the later entry wins and the
// collision is reported as a warning, not an error.
func ParseMenu(content string) *Menu {
	menu := &Menu{}
	index := map[string]int{}

	braceDepth := 0
	var open []openSubmenu

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if title, ok := declarationTitle(trimmed, "submenu"); ok {
			entry := models.BootEntry{
				ID:      EntryID(title),
				Title:   title,
				Submenu: true,
				Parent:  enclosingSubmenu(open),
			}
			menu.add(index, entry)
			open = append(open, openSubmenu{depth: braceDepth, id: entry.ID})
		} else if title, ok := declarationTitle(trimmed, "menuentry"); ok {
			menu.add(index, models.BootEntry{
				ID:     EntryID(title),
				Title:  title,
				Parent: enclosingSubmenu(open),
			})
		}

		braceDepth += strings.Count(line, "{")
		braceDepth -= strings.Count(line, "}")
		for len(open) > 0 && braceDepth <= open[len(open)-1].depth {
			open = open[:len(open)-1]
		}
	}
	return menu
}

// openSubmenu tracks a submenu header whose closing brace has not been
// reached yet. depth is the brace depth just before the declaration line.
type openSubmenu struct {
	depth int
	id    string
}

func enclosingSubmenu(open []openSubmenu) string {
	if len(open) == 0 {
		return ""
	}
	return open[len(open)-1].id
}

func (m *Menu) add(index map[string]int, entry models.BootEntry) {
	if at, dup := index[entry.ID]; dup {
		m.Warnings = append(m.Warnings,
			fmt.Sprintf("ambiguous menu title %q: two entries share one identifier, keeping the later", entry.Title))
		m.Entries[at] = entry
		return
	}
	index[entry.ID] = len(m.Entries)
	m.Entries = append(m.Entries, entry)
}

// declarationTitle extracts the quoted title from a "menuentry" or "submenu"
// declaration line. Both quoting styles used by the menu generator are
// accepted.
func declarationTitle(line, keyword string) (string, bool) {
	rest, ok := strings.CutPrefix(line, keyword)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return "", false
	}

	quote := rest[0]
	if quote != '\'' && quote != '"' {
		return "", false
	}
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return "", false
	}
	return rest[1 : 1+end], true
}

// EntryID derives the stable identifier for a menu title: a readable slug
// plus a short content hash, so retitling an entry changes its identifier
// while reordering does not.
func EntryID(title string) string {
	sum := sha256.Sum256([]byte(title))
	slug := slugify(title)
	if slug == "" {
		slug = "entry"
	}
	return slug + "-" + hex.EncodeToString(sum[:4])
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	return slug
}
