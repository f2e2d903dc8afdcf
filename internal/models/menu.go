package models

// BootEntry is one item of the generated boot menu. The identifier is derived
// deterministically from the title, so the same physical entry keeps its
// identifier across reparses as long as the title is unchanged.
type BootEntry struct {
	ID      string
	Title   string
	Submenu bool   // a submenu header rather than a bootable entry
	Parent  string // identifier of the enclosing submenu header, empty at top level
	Hidden  bool
}

// HiddenEntries maps the identifier of a hidden entry to its title. The title
// is persisted alongside the identifier because the regeneration hook filters
// the menu file by title.
type HiddenEntries map[string]string

// NewHiddenEntries returns an empty set.
func NewHiddenEntries() HiddenEntries {
	return HiddenEntries{}
}

// Clone returns a copy of the set.
func (h HiddenEntries) Clone() HiddenEntries {
	clone := make(HiddenEntries, len(h))
	for id, title := range h {
		clone[id] = title
	}
	return clone
}

// Has reports whether the entry with the given identifier is hidden.
func (h HiddenEntries) Has(id string) bool {
	_, ok := h[id]
	return ok
}

// Add marks an entry as hidden.
func (h HiddenEntries) Add(id, title string) {
	h[id] = title
}

// Remove unhides an entry. Removing an absent identifier is a no-op.
func (h HiddenEntries) Remove(id string) {
	delete(h, id)
}

// Titles returns the hidden titles in unspecified order.
func (h HiddenEntries) Titles() []string {
	titles := make([]string, 0, len(h))
	for _, title := range h {
		titles = append(titles, title)
	}
	return titles
}

// Reconcile drops identifiers that do not correspond to any entry of the most
// recent menu parse and returns the dropped identifiers. Stale identifiers
// are never silently kept.
func (h HiddenEntries) Reconcile(entries []BootEntry) []string {
	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.ID] = struct{}{}
	}

	var dropped []string
	for id := range h {
		if _, ok := known[id]; !ok {
			dropped = append(dropped, id)
			delete(h, id)
		}
	}
	return dropped
}
