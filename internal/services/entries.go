package services

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/cochaviz/grubctl/internal/config"
	"github.com/cochaviz/grubctl/internal/executor"
	"github.com/cochaviz/grubctl/internal/models"
	"github.com/cochaviz/grubctl/internal/validation"
)

// Entries returns the boot menu entries from the last Load, in menu order,
// with their hidden flag reflecting the hidden-entries store.
func (s *GrubService) Entries() ([]models.BootEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menu == nil {
		return nil, errNotLoaded()
	}

	entries := make([]models.BootEntry, len(s.menu.Entries))
	copy(entries, s.menu.Entries)
	for i := range entries {
		entries[i].Hidden = s.hidden.Has(entries[i].ID)
	}
	return entries, nil
}

// HideEntry hides the menu entry with the given identifier. The updated
// store and the re-apply hook are installed and run in one privileged unit.
// The last visible entry can never be hidden.
func (s *GrubService) HideEntry(ctx context.Context, id string) error {
	if err := validation.EntryIDFormat(id); err != nil {
		return err
	}
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	entry, ok := s.findEntry(id)
	if !ok {
		s.mu.Unlock()
		return models.ValidationError("no menu entry with identifier %s", id)
	}
	next := s.hidden.Clone()
	if next.Has(id) {
		s.mu.Unlock()
		return nil
	}
	next.Add(entry.ID, entry.Title)
	if visibleBootOptions(s.menu.Entries, next) == 0 {
		s.mu.Unlock()
		return models.ValidationError("cannot hide the last visible menu entry")
	}
	s.mu.Unlock()

	if err := s.applyHidden(ctx, next); err != nil {
		return err
	}
	s.mu.Lock()
	s.hidden = next
	s.mu.Unlock()
	s.logger().Info("menu entry hidden", "entry", entry.ID, "title", entry.Title)
	return nil
}

// ShowEntry makes a hidden menu entry visible again. The menu is
// regenerated so the entry reappears, then the hook re-applies the
// remaining hidden set.
func (s *GrubService) ShowEntry(ctx context.Context, id string) error {
	if err := validation.EntryIDFormat(id); err != nil {
		return err
	}
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	entry, ok := s.findEntry(id)
	if !ok {
		s.mu.Unlock()
		return models.ValidationError("no menu entry with identifier %s", id)
	}
	next := s.hidden.Clone()
	s.mu.Unlock()

	if !next.Has(id) {
		return models.ValidationError("menu entry %s is not hidden", id)
	}
	next.Remove(id)

	if err := s.applyHidden(ctx, next); err != nil {
		return err
	}
	s.mu.Lock()
	s.hidden = next
	s.mu.Unlock()
	s.logger().Info("menu entry shown", "entry", entry.ID, "title", entry.Title)
	return nil
}

// visibleBootOptions counts the boot options that stay visible under the
// given hidden set. A hidden submenu header takes its whole body with it,
// so a member is gone as soon as any enclosing header is hidden.
func visibleBootOptions(entries []models.BootEntry, hidden models.HiddenEntries) int {
	parent := make(map[string]string, len(entries))
	for _, e := range entries {
		parent[e.ID] = e.Parent
	}

	count := 0
	for _, e := range entries {
		if e.Submenu {
			continue
		}
		gone := hidden.Has(e.ID)
		for p := e.Parent; !gone && p != ""; p = parent[p] {
			gone = hidden.Has(p)
		}
		if !gone {
			count++
		}
	}
	return count
}

// findEntry looks an entry up by identifier. Callers hold s.mu.
func (s *GrubService) findEntry(id string) (models.BootEntry, bool) {
	if s.menu == nil {
		return models.BootEntry{}, false
	}
	for _, entry := range s.menu.Entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return models.BootEntry{}, false
}

// applyHidden persists the hidden set, installs the re-apply hook,
// regenerates the menu and filters it, all in one privileged script.
// Regenerating first guarantees that entries removed from the hidden set
// come back.
func (s *GrubService) applyHidden(ctx context.Context, set models.HiddenEntries) error {
	spec := executor.NewCommandSpec()
	cleanup, err := s.addHiddenInstall(spec, set)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.addRegenCommand(spec); err != nil {
		return err
	}
	if err := s.addHookRun(spec); err != nil {
		return err
	}

	_, err = s.Executor.RunScript(ctx, spec)
	return err
}

// addHiddenInstall appends the steps that persist the hidden set and install
// the re-apply hook. The returned cleanup removes the staged files and must
// run after the script did.
func (s *GrubService) addHiddenInstall(spec *executor.CommandSpec, set models.HiddenEntries) (func(), error) {
	if s.Hidden == nil {
		return nil, models.NewError(models.KindConfig, "no hidden-entries store configured", nil)
	}

	data, err := config.RenderHiddenEntries(set)
	if err != nil {
		return nil, err
	}
	storePath, cleanupStore, err := stageContent(string(data))
	if err != nil {
		return nil, err
	}

	hookPath, cleanupHook, err := stageContent(config.HookScript(s.Hidden.Path, s.MenuPaths))
	if err != nil {
		cleanupStore()
		return nil, err
	}
	cleanup := func() {
		cleanupStore()
		cleanupHook()
	}

	steps := [][]string{
		{"mkdir", "-p", filepath.Dir(s.Hidden.Path)},
		{"cp", storePath, s.Hidden.Path},
	}
	if s.HookPath != "" {
		steps = append(steps,
			[]string{"mkdir", "-p", filepath.Dir(s.HookPath)},
			[]string{"cp", hookPath, s.HookPath},
			[]string{"chmod", "755", s.HookPath},
		)
	}
	for _, step := range steps {
		if err := spec.Add(step...); err != nil {
			cleanup()
			return nil, err
		}
	}
	return cleanup, nil
}

// addHookRun appends an immediate run of the installed hook so the freshly
// regenerated menu is filtered right away.
func (s *GrubService) addHookRun(spec *executor.CommandSpec) error {
	if s.HookPath == "" {
		return nil
	}
	return spec.Add("/bin/sh", s.HookPath)
}

// HiddenTitles returns the hidden titles sorted for stable display.
func (s *GrubService) HiddenTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := s.hidden.Titles()
	sort.Strings(titles)
	return titles
}
