package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const jsonIndent = "  "

// Prune removes the named dependencies from both dependency sections and
// returns the names actually removed, sorted. Names not declared are ignored.
func (m *Manifest) Prune(names []string) []string {
	removed := make([]string, 0, len(names))

	for _, name := range names {
		found := false

		if _, ok := m.Dependencies[name]; ok {
			delete(m.Dependencies, name)
			deleteRaw(m.raw, "dependencies", name)

			found = true
		}

		if _, ok := m.DevDependencies[name]; ok {
			delete(m.DevDependencies, name)
			deleteRaw(m.raw, "devDependencies", name)

			found = true
		}

		if found {
			removed = append(removed, name)
		}
	}

	slices.Sort(removed)

	return removed
}

func deleteRaw(raw map[string]any, section, name string) {
	obj, ok := raw[section].(map[string]any)
	if !ok {
		return
	}

	delete(obj, name)
}

// Encode renders the manifest as indented JSON with a trailing newline.
// Object keys are emitted in sorted order, so output is deterministic.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m.raw, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return append(data, '\n'), nil
}

// Write encodes the manifest and writes it back to its original path,
// preserving the original file mode.
func (m *Manifest) Write() error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.Path, data, m.mode); err != nil {
		return fmt.Errorf("write manifest %s: %w", m.Path, err)
	}

	return nil
}

// Diff renders a terminal-colored character diff between two manifest
// renderings, for previewing a rewrite before applying it.
func Diff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	return dmp.DiffPrettyText(dmp.DiffCleanupSemantic(diffs))
}
