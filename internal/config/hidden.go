package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cochaviz/grubctl/internal/models"
)

// hiddenFileVersion is bumped if the store layout ever changes.
const hiddenFileVersion = 1

// HiddenStore persists the set of hidden boot entries. The store lives
// outside the defaults file so that the regeneration hook can re-derive
// visibility after any external menu regeneration.
type HiddenStore struct {
	Path string
}

type hiddenEntry struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
}

type hiddenFile struct {
	Version int           `yaml:"version"`
	Entries []hiddenEntry `yaml:"entries"`
}

// Load reads the persisted set. A missing store file means nothing is hidden.
func (s *HiddenStore) Load() (models.HiddenEntries, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewHiddenEntries(), nil
	}
	if err != nil {
		return nil, models.NewError(models.KindConfig, "cannot read hidden-entries store", err)
	}

	var file hiddenFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, models.NewError(models.KindConfig, "hidden-entries store is corrupted", err)
	}

	set := models.NewHiddenEntries()
	for _, entry := range file.Entries {
		if entry.ID == "" || entry.Title == "" {
			continue
		}
		set.Add(entry.ID, entry.Title)
	}
	return set, nil
}

// RenderHiddenEntries serializes the set in deterministic order.
func RenderHiddenEntries(set models.HiddenEntries) ([]byte, error) {
	file := hiddenFile{Version: hiddenFileVersion}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		file.Entries = append(file.Entries, hiddenEntry{ID: id, Title: set[id]})
	}
	return yaml.Marshal(file)
}

// FilterMenu removes hidden entries (and their bodies) from menu file lines,
// tracking brace depth so nested submenu content is removed with its header.
func FilterMenu(lines []string, hiddenTitles map[string]struct{}) []string {
	var out []string
	skipping := false
	skipLevel := 0
	depth := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !skipping {
			title, isEntry := declarationTitle(trimmed, "menuentry")
			if !isEntry {
				title, isEntry = declarationTitle(trimmed, "submenu")
			}
			if isEntry {
				if _, hidden := hiddenTitles[title]; hidden {
					skipping = true
					skipLevel = depth
				}
			}
		}

		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		if skipping {
			depth += opens - closes
			if depth <= skipLevel {
				skipping = false
			}
			continue
		}

		out = append(out, line)
		depth += opens - closes
	}
	return out
}

// HookScript renders the shell hook installed under the kernel post-install
// directory. The hook re-applies hiding from the persisted store after any
// menu regeneration triggered outside this tool. Everything interpolated into
// the script is a path that already passed the sanitizer.
func HookScript(storePath string, menuCandidates []string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Re-applies hidden GRUB menu entries after the menu is regenerated.\n")
	b.WriteString("# Managed by grubctl; edits will be overwritten.\n")
	b.WriteString("set -eu\n\n")
	fmt.Fprintf(&b, "STORE=%s\n", shellQuote(storePath))
	b.WriteString(`[ -f "$STORE" ] || exit 0
TITLES=$(sed -n 's/^[[:space:]]*title:[[:space:]]*//p' "$STORE" | sed 's/^"\(.*\)"$/\1/')
[ -n "$TITLES" ] || exit 0
`)
	fmt.Fprintf(&b, "for CFG in %s; do\n", strings.Join(quoteAll(menuCandidates), " "))
	b.WriteString(`  [ -f "$CFG" ] || continue
  TMP="$CFG.grubctl.$$"
  printf '%s\n' "$TITLES" | awk -v sq=\' -v dq='"' '
    NR == FNR { hide[$0] = 1; next }
    {
      line = $0
      if (!skip && line ~ /^[ \t]*(menuentry|submenu)[ \t]/) {
        t = line
        sub("^[ \t]*(menuentry|submenu)[ \t]+[" sq dq "]", "", t)
        sub("[" sq dq "].*$", "", t)
        if (t in hide) { skip = 1; level = depth }
      }
      n = gsub(/{/, "{", line)
      m = gsub(/}/, "}", line)
      if (skip) {
        depth += n - m
        if (depth <= level) skip = 0
        next
      }
      print
      depth += n - m
    }
  ' - "$CFG" > "$TMP" && mv "$TMP" "$CFG"
  break
done
`)
	return b.String()
}

func quoteAll(values []string) []string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = shellQuote(v)
	}
	return quoted
}

// shellQuote single-quotes a value for inclusion in generated shell text.
// Values reaching this point have already been sanitized, which forbids
// single quotes; the escape is kept anyway as the last line of defense.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
