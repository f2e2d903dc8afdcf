// Package config reads and regenerates the GRUB defaults file, parses the
// generated menu file, and persists the hidden-entries set.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cochaviz/grubctl/internal/models"
)

// Defaults is the result of loading the GRUB defaults file: the structured
// record, the raw lines needed for faithful regeneration, and any warnings
// about lines that could not be understood. Malformed lines never abort the
// load; the file is human-edited and the rest must stay readable.
type Defaults struct {
	Record   *models.ConfigurationRecord
	Lines    []string
	Warnings []string
}

// LoadDefaults reads and parses the defaults file at path.
func LoadDefaults(path string) (*Defaults, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewError(models.KindConfig, fmt.Sprintf("cannot read configuration file %s", path), err)
	}
	return ParseDefaults(string(content)), nil
}

// ParseDefaults parses the defaults file content. Exposed separately from
// LoadDefaults so the generator round-trip can be tested without a filesystem.
func ParseDefaults(content string) *Defaults {
	defaults := &Defaults{
		Record: models.NewConfigurationRecord(),
		Lines:  splitLines(content),
	}

	for i, line := range defaults.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		assignment, ok, warning := parseAssignment(trimmed)
		if warning != "" {
			defaults.Warnings = append(defaults.Warnings, fmt.Sprintf("line %d: %s", i+1, warning))
		}
		if !ok {
			continue
		}
		defaults.Record.Set(assignment.Key, assignment.Value)
	}
	return defaults
}

// assignment is one parsed KEY=VALUE line.
type assignment struct {
	Key      string
	Value    string
	Quoted   bool
	Exported bool
}

// parseAssignment parses a trimmed, non-comment line. Double-quoted values
// may contain spaces and '#'; a '#' outside quotes starts a trailing comment.
func parseAssignment(line string) (assignment, bool, string) {
	keyPart, valuePart, found := strings.Cut(line, "=")
	if !found {
		return assignment{}, false, fmt.Sprintf("no '=' separator in %q", line)
	}

	key := strings.TrimSpace(keyPart)
	exported := false
	if rest, ok := strings.CutPrefix(key, "export "); ok {
		key = strings.TrimSpace(rest)
		exported = true
	}
	if key == "" || strings.ContainsAny(key, " \t") {
		return assignment{}, false, fmt.Sprintf("malformed key in %q", line)
	}

	value := strings.TrimSpace(valuePart)
	quoted := false
	switch {
	case strings.HasPrefix(value, `"`):
		inner, ok := cutQuoted(value, '"')
		if !ok {
			return assignment{}, false, fmt.Sprintf("unterminated quote in %q", line)
		}
		value = inner
		quoted = true
	case strings.HasPrefix(value, "'"):
		inner, ok := cutQuoted(value, '\'')
		if !ok {
			return assignment{}, false, fmt.Sprintf("unterminated quote in %q", line)
		}
		value = inner
		quoted = true
	default:
		// Unquoted: a '#' starts a comment.
		if idx := strings.IndexByte(value, '#'); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
		}
	}

	return assignment{Key: key, Value: value, Quoted: quoted, Exported: exported}, true, ""
}

// cutQuoted returns the content between the opening quote at value[0] and its
// closing counterpart, honoring backslash escapes inside double quotes.
func cutQuoted(value string, quote byte) (string, bool) {
	for i := 1; i < len(value); i++ {
		if quote == '"' && value[i] == '\\' {
			i++
			continue
		}
		if value[i] == quote {
			return value[1:i], true
		}
	}
	return "", false
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n")
}
