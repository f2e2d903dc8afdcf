package executor

import (
	"strings"

	"github.com/cochaviz/grubctl/internal/validation"
)

// CommandSpec describes a privileged operation as a sequence of fully
// materialized script lines. Every line is either a fixed fragment known at
// compile time or an argument vector whose elements passed the sanitizer and
// were shell-quoted at construction time. Raw user input is never
// concatenated into a line.
type CommandSpec struct {
	lines []string
}

// NewCommandSpec returns an empty spec.
func NewCommandSpec() *CommandSpec {
	return &CommandSpec{}
}

// Add appends one command as an argument vector. Each element is checked by
// the sanitizer and quoted; the call fails if any element is rejected.
func (s *CommandSpec) Add(argv ...string) error {
	if len(argv) == 0 {
		return nil
	}
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		if _, err := validation.SanitizeValue(arg); err != nil {
			return err
		}
		quoted[i] = shellQuote(arg)
	}
	s.lines = append(s.lines, strings.Join(quoted, " "))
	return nil
}

// AddStatic appends a fixed script fragment. It is the only way shell
// syntax enters a spec; callers own the fragment text, and any value
// interpolated into it must have passed the sanitizer first.
func (s *CommandSpec) AddStatic(fragment string) {
	s.lines = append(s.lines, strings.TrimRight(fragment, "\n"))
}

// Empty reports whether the spec has no lines.
func (s *CommandSpec) Empty() bool {
	return len(s.lines) == 0
}

// Script renders the spec as a self-contained POSIX shell script that stops
// at the first failing step.
func (s *CommandSpec) Script() string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("set -eu\n")
	for _, line := range s.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// shellQuote wraps a sanitized value in single quotes. The sanitizer forbids
// quotes and metacharacters already; the escape remains as the final layer.
func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " \t'\"\\$`;&|<>(){}[]*?~#=") {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
