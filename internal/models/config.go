package models

// Recognized configuration keys in the GRUB defaults file. Everything else
// found in the file is carried through untouched.
const (
	KeyTimeout        = "GRUB_TIMEOUT"
	KeyDefaultEntry   = "GRUB_DEFAULT"
	KeyCmdline        = "GRUB_CMDLINE_LINUX_DEFAULT"
	KeyGfxMode        = "GRUB_GFXMODE"
	KeyTerminalOutput = "GRUB_TERMINAL_OUTPUT"
	KeyTheme          = "GRUB_THEME"
	KeyBackground     = "GRUB_BACKGROUND"
	KeyColorNormal    = "GRUB_COLOR_NORMAL"
	KeyColorHighlight = "GRUB_COLOR_HIGHLIGHT"
)

// recognizedKeys is the canonical emission order used when a managed key has
// to be appended to a file that did not contain it.
var recognizedKeys = []string{
	KeyTimeout,
	KeyDefaultEntry,
	KeyCmdline,
	KeyGfxMode,
	KeyTerminalOutput,
	KeyTheme,
	KeyBackground,
	KeyColorNormal,
	KeyColorHighlight,
}

// RecognizedKeys returns the managed keys in canonical order.
func RecognizedKeys() []string {
	keys := make([]string, len(recognizedKeys))
	copy(keys, recognizedKeys)
	return keys
}

// IsRecognized reports whether key is managed by the engine.
func IsRecognized(key string) bool {
	for _, k := range recognizedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// ConfigurationRecord holds the parsed state of the GRUB defaults file.
// Recognized values are kept in validated, normalized form once they have
// been staged through the validator; unrecognized values are opaque and are
// never interpreted.
type ConfigurationRecord struct {
	Recognized   map[string]string
	Unrecognized map[string]string
}

// NewConfigurationRecord returns an empty record.
func NewConfigurationRecord() *ConfigurationRecord {
	return &ConfigurationRecord{
		Recognized:   map[string]string{},
		Unrecognized: map[string]string{},
	}
}

// Clone returns a deep copy of the record.
func (r *ConfigurationRecord) Clone() *ConfigurationRecord {
	clone := NewConfigurationRecord()
	for k, v := range r.Recognized {
		clone.Recognized[k] = v
	}
	for k, v := range r.Unrecognized {
		clone.Unrecognized[k] = v
	}
	return clone
}

// Set stores a value under the appropriate map for the key.
func (r *ConfigurationRecord) Set(key, value string) {
	if IsRecognized(key) {
		r.Recognized[key] = value
		return
	}
	r.Unrecognized[key] = value
}

// Get returns the value for key from either map.
func (r *ConfigurationRecord) Get(key string) (string, bool) {
	if v, ok := r.Recognized[key]; ok {
		return v, true
	}
	v, ok := r.Unrecognized[key]
	return v, ok
}
