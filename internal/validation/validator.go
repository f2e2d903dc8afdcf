// Package validation implements the two input layers guarding the
// configuration engine: per-field validators that normalize candidate values,
// and a security sanitizer rejecting anything that could change meaning at a
// shell or path boundary. Both layers are pure; neither runs a command.
package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/cochaviz/grubctl/internal/models"
)

// TimeoutMax is the largest accepted menu timeout in seconds.
const TimeoutMax = 300

var (
	timeoutPattern      = regexp.MustCompile(`^\d+$`)
	resolutionPattern   = regexp.MustCompile(`^(\d+)x(\d+)$`)
	kernelTokenPattern  = regexp.MustCompile(`^[A-Za-z0-9._,:/=-]+$`)
	defaultEntryPattern = regexp.MustCompile(`^(\d+(>\d+)*|saved)$`)
	entryIDPattern      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// EntryIDFormat checks the shape of a menu entry identifier before it is
// looked up. Identifiers are generated from titles and never contain
// anything outside this alphabet.
func EntryIDFormat(raw string) error {
	if !entryIDPattern.MatchString(raw) {
		return models.ValidationError("entry identifier must consist of lowercase letters, digits and dashes")
	}
	return nil
}

// Display bounds accepted for an explicit resolution.
const (
	resolutionMin = 100
	resolutionMax = 16384
)

// colorNames are the color identifiers GRUB accepts in color pairs.
var colorNames = map[string]struct{}{
	"black": {}, "blue": {}, "brown": {}, "cyan": {},
	"dark-gray": {}, "green": {}, "light-blue": {}, "light-cyan": {},
	"light-gray": {}, "light-green": {}, "light-magenta": {}, "light-red": {},
	"magenta": {}, "red": {}, "white": {}, "yellow": {},
}

// terminalOutputs are the accepted GRUB_TERMINAL_OUTPUT values.
var terminalOutputs = map[string]struct{}{
	"console": {}, "serial": {}, "gfxterm": {}, "vga_text": {},
}

// Timeout validates a menu timeout. Only canonical base-10 digit strings in
// 0..TimeoutMax are accepted; empty, signed, fractional, and out-of-range
// input is rejected.
func Timeout(raw string) (int, error) {
	if raw == "" {
		return 0, models.ValidationError("timeout must not be empty")
	}
	if !timeoutPattern.MatchString(raw) {
		return 0, models.ValidationError("timeout must be a non-negative integer")
	}
	timeout, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.ValidationError("timeout must be a non-negative integer")
	}
	if timeout > TimeoutMax {
		return 0, models.ValidationError("timeout must be between 0 and %d seconds", TimeoutMax)
	}
	return timeout, nil
}

// Resolution validates a graphics mode: "auto" or WIDTHxHEIGHT with both
// components positive integers in a sane display range.
func Resolution(raw string) (string, error) {
	if strings.EqualFold(raw, "auto") {
		return "auto", nil
	}
	match := resolutionPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", models.ValidationError("resolution must be WIDTHxHEIGHT or auto")
	}
	for _, component := range match[1:3] {
		n, err := strconv.Atoi(component)
		if err != nil || n < resolutionMin || n > resolutionMax {
			return "", models.ValidationError("resolution components must be between %d and %d", resolutionMin, resolutionMax)
		}
	}
	return raw, nil
}

// FilePath validates a path to an existing regular file with a whitelisted
// extension. The path must survive the sanitizer, resolve (after symlink
// resolution) into an allowed directory, and be readable.
func FilePath(raw string, allowedExts []string) (string, error) {
	if _, err := SanitizePath(raw); err != nil {
		return "", models.NewError(models.KindValidation, "unsafe file path", err)
	}

	resolved, err := filepath.EvalSymlinks(raw)
	if err != nil {
		return "", models.ValidationError("file does not exist: %s", raw)
	}
	if _, err := SanitizePath(resolved); err != nil {
		return "", models.NewError(models.KindValidation, "path resolves outside allowed directories", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", models.ValidationError("file does not exist: %s", raw)
	}
	if !info.Mode().IsRegular() {
		return "", models.ValidationError("not a regular file: %s", raw)
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	allowed := false
	for _, e := range allowedExts {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", models.ValidationError("extension %q not allowed (allowed: %s)", ext, strings.Join(allowedExts, ", "))
	}

	if err := unix.Access(resolved, unix.R_OK); err != nil {
		return "", models.ValidationError("file is not readable: %s", raw)
	}
	return resolved, nil
}

// KernelParams validates a kernel command line. The string is tokenized on
// whitespace and every token must match the allow-pattern; the whole string
// is rejected if any token fails.
func KernelParams(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	cleaned, err := SanitizeKernelParams(raw)
	if err != nil {
		return "", models.NewError(models.KindValidation, "unsafe kernel parameters", err)
	}
	for _, token := range strings.Fields(cleaned) {
		if !kernelTokenPattern.MatchString(token) {
			return "", models.ValidationError("invalid kernel parameter %q", token)
		}
	}
	return cleaned, nil
}

// ColorPair validates a "fg/bg" color pair against the GRUB color names.
func ColorPair(raw string) (string, error) {
	if raw == "" {
		return "", models.ValidationError("color pair must not be empty")
	}
	fg, bg, found := strings.Cut(raw, "/")
	if !found {
		return "", models.ValidationError("color must be in fg/bg form (example: light-gray/black)")
	}
	fg = strings.TrimSpace(fg)
	bg = strings.TrimSpace(bg)
	for _, color := range []string{fg, bg} {
		if _, ok := colorNames[color]; !ok {
			return "", models.ValidationError("unknown color %q (allowed: %s)", color, strings.Join(sortedColorNames(), ", "))
		}
	}
	return fg + "/" + bg, nil
}

// TerminalOutput validates the terminal output mode.
func TerminalOutput(raw string) (string, error) {
	mode := strings.TrimSpace(raw)
	if _, ok := terminalOutputs[mode]; !ok {
		return "", models.ValidationError("unknown terminal output %q", raw)
	}
	return mode, nil
}

// DefaultEntry validates the default boot entry selector: a numeric index
// (optionally a submenu path like 1>2), the word "saved", or an entry
// identifier produced by the menu parser.
func DefaultEntry(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", models.ValidationError("default entry must not be empty")
	}
	if defaultEntryPattern.MatchString(value) || entryIDPattern.MatchString(value) {
		return value, nil
	}
	return "", models.ValidationError("invalid default entry %q", raw)
}

// Extensions accepted for the optional asset paths.
var (
	ImageExtensions = []string{".png", ".jpg", ".jpeg", ".tga"}
	ThemeExtensions = []string{".txt"}
)

// fieldValidator maps a recognized key to its checker. The checker returns
// the normalized value on success.
func fieldValidator(key string) (func(string) (string, error), bool) {
	switch key {
	case models.KeyTimeout:
		return func(raw string) (string, error) {
			timeout, err := Timeout(raw)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(timeout), nil
		}, true
	case models.KeyGfxMode:
		return Resolution, true
	case models.KeyCmdline:
		return KernelParams, true
	case models.KeyDefaultEntry:
		return DefaultEntry, true
	case models.KeyTerminalOutput:
		return TerminalOutput, true
	case models.KeyColorNormal, models.KeyColorHighlight:
		return ColorPair, true
	case models.KeyBackground:
		return optionalPath(ImageExtensions), true
	case models.KeyTheme:
		return optionalPath(ThemeExtensions), true
	}
	return nil, false
}

// Field validates a single value for the given key and returns its
// normalized form. Unrecognized keys are not interpreted, but their values
// still have to pass the line sanitizer before they may be stored.
func Field(key, raw string) (string, error) {
	if validate, ok := fieldValidator(key); ok {
		return validate(raw)
	}
	return SanitizeLine(raw)
}

// Record runs every relevant validator over the recognized keys of the record
// and aggregates all failures so the caller can report every problem in one
// pass. Values are replaced by their normalized form on success. Unrecognized
// keys are never validated or interpreted.
func Record(record *models.ConfigurationRecord) error {
	var failures models.FieldErrors

	for _, key := range models.RecognizedKeys() {
		raw, ok := record.Recognized[key]
		if !ok {
			continue
		}
		validate, ok := fieldValidator(key)
		if !ok {
			continue
		}
		normalized, err := validate(raw)
		if err != nil {
			failures = append(failures, models.FieldError{Field: key, Reason: reasonOf(err)})
			continue
		}
		record.Recognized[key] = normalized
	}

	return failures.OrNil()
}

func optionalPath(allowedExts []string) func(string) (string, error) {
	return func(raw string) (string, error) {
		if raw == "" {
			return "", nil
		}
		return FilePath(raw, allowedExts)
	}
}

func reasonOf(err error) string {
	var typed *models.Error
	if errors.As(err, &typed) {
		if typed.Detail != "" {
			return fmt.Sprintf("%s (%s)", typed.Message, typed.Detail)
		}
		return typed.Message
	}
	return err.Error()
}

func sortedColorNames() []string {
	names := make([]string, 0, len(colorNames))
	for name := range colorNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
