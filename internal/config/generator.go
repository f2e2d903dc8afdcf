package config

import (
	"fmt"
	"strings"

	"github.com/cochaviz/grubctl/internal/models"
)

// exportedKeys are always emitted with an "export " prefix; GRUB helper
// scripts read them from the environment rather than the file.
var exportedKeys = map[string]struct{}{
	models.KeyColorNormal:    {},
	models.KeyColorHighlight: {},
}

// Generate produces the new content of the defaults file from the record and
// the original lines. It is a pure function: recognized keys are rewritten in
// place with their current values, unrecognized lines are preserved
// byte-for-byte, recognized keys with empty values are dropped, and managed
// keys absent from the original file are appended in canonical order.
func Generate(record *models.ConfigurationRecord, originalLines []string) string {
	active := activeKeys(originalLines)
	seen := map[string]bool{}
	var out []string

	for _, line := range originalLines {
		rewritten, keep, key := rewriteLine(line, record, active)
		if key != "" {
			seen[key] = true
		}
		if keep {
			out = append(out, rewritten)
		}
	}

	for _, key := range models.RecognizedKeys() {
		value, ok := record.Recognized[key]
		if !ok || value == "" || seen[key] {
			continue
		}
		out = append(out, buildLine(key, value, false))
	}

	return strings.Join(out, "\n") + "\n"
}

// activeKeys collects the keys assigned on non-comment lines, so that a
// commented-out duplicate of an active key is left untouched.
func activeKeys(lines []string) map[string]bool {
	keys := map[string]bool{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if parsed, ok, _ := parseAssignment(trimmed); ok {
			keys[parsed.Key] = true
		}
	}
	return keys
}

// rewriteLine returns the replacement for one original line, whether the line
// is kept at all, and the recognized key it settles (if any). A commented-out
// recognized key is reactivated in place when the record carries a value for
// it and no active line assigns it elsewhere, so a managed key surfaces next
// to its documentation comment.
func rewriteLine(line string, record *models.ConfigurationRecord, active map[string]bool) (string, bool, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return strings.TrimRight(line, " \t"), true, ""
	}

	commented := false
	body := trimmed
	if strings.HasPrefix(body, "#") {
		commented = true
		body = strings.TrimSpace(strings.TrimLeft(body, "#"))
	}
	if !strings.Contains(body, "=") {
		// Pure comment or free text.
		return strings.TrimRight(line, " \t"), true, ""
	}

	parsed, ok, _ := parseAssignment(body)
	if !ok || !models.IsRecognized(parsed.Key) {
		// Unrecognized assignments (and unparseable lines) pass through
		// verbatim; they are never ours to rewrite.
		return line, true, ""
	}

	value, managed := record.Recognized[parsed.Key]
	if !managed {
		return line, true, ""
	}

	if commented {
		if value == "" || active[parsed.Key] {
			return strings.TrimRight(line, " \t"), true, ""
		}
		return buildLine(parsed.Key, value, parsed.Exported), true, parsed.Key
	}

	if value == "" {
		// Empty value removes the line.
		return "", false, parsed.Key
	}
	if value == parsed.Value {
		// Unchanged: keep the original bytes, including quoting style.
		return line, true, parsed.Key
	}
	return buildLine(parsed.Key, value, parsed.Exported), true, parsed.Key
}

func buildLine(key, value string, wasExported bool) string {
	prefix := ""
	if _, always := exportedKeys[key]; always || wasExported {
		prefix = "export "
	}
	return fmt.Sprintf(`%s%s="%s"`, prefix, key, value)
}
