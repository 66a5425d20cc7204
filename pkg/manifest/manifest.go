// Package manifest reads, validates, and rewrites package.json files.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Name is the manifest filename at a project root.
const Name = "package.json"

// defaultFilePerm is used when the original manifest mode cannot be read.
const defaultFilePerm = 0o644

// Sentinel manifest errors. All of them are fatal for a scan: without a
// readable manifest there is no declared-dependency set to classify against.
var (
	ErrNotFound = errors.New("manifest not found")
	ErrInvalid  = errors.New("manifest is not valid JSON")
	ErrSchema   = errors.New("manifest does not match the package.json schema")
)

//go:embed package-schema.json
var schemaBytes []byte

// Manifest is a parsed package.json. The full document is retained so
// rewrites preserve fields the scanner does not interpret.
type Manifest struct {
	// Path is the absolute path the manifest was read from.
	Path string

	// Dependencies maps declared runtime dependency names to version ranges.
	Dependencies map[string]string

	// DevDependencies maps declared dev dependency names to version ranges.
	DevDependencies map[string]string

	raw  map[string]any
	mode fs.FileMode
}

// Read loads and validates the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	mode := fs.FileMode(defaultFilePerm)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	return parse(path, data, mode)
}

// ReadProject loads the manifest at the root of the given project directory.
func ReadProject(projectDir string) (*Manifest, error) {
	return Read(filepath.Join(projectDir, Name))
}

func parse(path string, data []byte, mode fs.FileMode) (*Manifest, error) {
	var raw map[string]any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	if err := validate(path, raw); err != nil {
		return nil, err
	}

	return &Manifest{
		Path:            path,
		Dependencies:    depsFrom(raw, "dependencies"),
		DevDependencies: depsFrom(raw, "devDependencies"),
		raw:             raw,
		mode:            mode,
	}, nil
}

func validate(path string, raw map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate manifest %s: %w", path, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return fmt.Errorf("%w: %s: %s", ErrSchema, path, strings.Join(msgs, "; "))
}

func depsFrom(raw map[string]any, key string) map[string]string {
	deps := make(map[string]string)

	obj, ok := raw[key].(map[string]any)
	if !ok {
		return deps
	}

	for name, version := range obj {
		if ver, isStr := version.(string); isStr {
			deps[name] = ver
		}
	}

	return deps
}

// Declared returns the union of dependencies and devDependencies.
// When a name appears in both, the runtime dependency version wins.
func (m *Manifest) Declared() map[string]string {
	decl := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	maps.Copy(decl, m.DevDependencies)
	maps.Copy(decl, m.Dependencies)

	return decl
}

// Version returns the declared version range for name, searching runtime
// dependencies before dev dependencies.
func (m *Manifest) Version(name string) (string, bool) {
	if ver, ok := m.Dependencies[name]; ok {
		return ver, true
	}

	ver, ok := m.DevDependencies[name]

	return ver, ok
}

// ProjectName returns the manifest "name" field, if present.
func (m *Manifest) ProjectName() string {
	name, _ := m.raw["name"].(string)

	return name
}
