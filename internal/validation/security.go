package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// SecurityError is raised when input fails the injection checks. It is kept
// distinct from ordinary validation failures: the sanitizer is a second,
// independent layer underneath the field validators, and the command executor
// refuses any value that has not passed it.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return "security: " + e.Reason
}

func securityErrorf(format string, args ...any) error {
	return &SecurityError{Reason: fmt.Sprintf(format, args...)}
}

// Size limits on any value that can reach a command boundary.
const (
	MaxLineLength      = 4096
	MaxValueLength     = 512
	MaxParamNameLength = 256
)

var (
	shellMetaPattern = regexp.MustCompile("[;&|`$(){}\\[\\]<>\\\\\"']")
	paramNamePattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
)

func containsControl(value string) bool {
	for _, r := range value {
		if r < 0x20 && r != '\t' || r == 0x7f {
			return true
		}
	}
	return false
}

// SanitizeLine checks a single configuration value or line. It rejects
// over-long input, control characters, and NUL bytes, and returns the value
// with surrounding whitespace trimmed.
func SanitizeLine(value string) (string, error) {
	if len(value) > MaxLineLength {
		return "", securityErrorf("line too long (max %d)", MaxLineLength)
	}
	if strings.ContainsRune(value, 0) {
		return "", securityErrorf("NUL bytes not allowed")
	}
	if containsControl(value) {
		return "", securityErrorf("control characters not allowed")
	}
	return strings.TrimSpace(value), nil
}

// SanitizeValue applies SanitizeLine and additionally rejects shell
// metacharacters. This is the check applied to every value interpolated into
// a command or a generated script.
func SanitizeValue(value string) (string, error) {
	cleaned, err := SanitizeLine(value)
	if err != nil {
		return "", err
	}
	if loc := shellMetaPattern.FindStringIndex(cleaned); loc != nil {
		return "", securityErrorf("shell metacharacter %q not allowed", cleaned[loc[0]:loc[1]])
	}
	return cleaned, nil
}

// SanitizeParameterName checks a GRUB variable name (UPPER_SNAKE form).
func SanitizeParameterName(name string) (string, error) {
	if name == "" {
		return "", securityErrorf("parameter name cannot be empty")
	}
	if len(name) > MaxParamNameLength {
		return "", securityErrorf("parameter name too long")
	}
	if !paramNamePattern.MatchString(name) {
		return "", securityErrorf("invalid parameter name %q", name)
	}
	return name, nil
}

// allowedPathPrefixes are the directories GRUB assets may legitimately live
// in: system config, boot files, staging, themes, and user images.
var allowedPathPrefixes = []string{
	"/etc/",
	"/boot/",
	"/tmp/",
	"/var/",
	"/usr/share/",
	"/home/",
	"/root/",
}

// SanitizePath checks a filesystem path against traversal and expansion
// tricks and confines it to the allowed directory prefixes.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", securityErrorf("path cannot be empty")
	}
	if _, err := SanitizeLine(path); err != nil {
		return "", err
	}
	if strings.Contains(path, "..") {
		return "", securityErrorf("directory traversal not allowed")
	}
	if strings.HasPrefix(path, "~") {
		return "", securityErrorf("tilde expansion not allowed")
	}
	for _, prefix := range allowedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return path, nil
		}
	}
	return "", securityErrorf("path %s not in an allowed directory", path)
}

// SanitizeKernelParams checks a kernel command line: no pipes, redirections,
// substitutions, quotes, or newlines anywhere in the string.
func SanitizeKernelParams(params string) (string, error) {
	cleaned, err := SanitizeLine(params)
	if err != nil {
		return "", err
	}
	if loc := shellMetaPattern.FindStringIndex(cleaned); loc != nil {
		return "", securityErrorf("shell metacharacter %q not allowed in kernel parameters", cleaned[loc[0]:loc[1]])
	}
	return cleaned, nil
}
