package cleanup

import (
	"os"
	"path/filepath"
)

// PackageManager identifies the tool used to regenerate node_modules
// and the lockfile after a manifest rewrite.
type PackageManager string

// Supported package managers.
const (
	NPM  PackageManager = "npm"
	Yarn PackageManager = "yarn"
	PNPM PackageManager = "pnpm"
)

// lockfile precedence follows how projects migrate: an npm lockfile
// left behind is overridden by a yarn or pnpm one only when npm's is
// absent.
var lockfiles = []struct {
	name string
	pm   PackageManager
}{
	{"package-lock.json", NPM},
	{"yarn.lock", Yarn},
	{"pnpm-lock.yaml", PNPM},
}

// DetectPackageManager picks the package manager from the lockfile
// present at root, defaulting to npm when none is found.
func DetectPackageManager(root string) PackageManager {
	for _, lock := range lockfiles {
		if _, err := os.Stat(filepath.Join(root, lock.name)); err == nil {
			return lock.pm
		}
	}

	return NPM
}

// ResolvePackageManager honors an explicit configuration choice and
// falls back to detection for "auto" or empty values.
func ResolvePackageManager(configured, root string) PackageManager {
	switch PackageManager(configured) {
	case NPM, Yarn, PNPM:
		return PackageManager(configured)
	default:
		return DetectPackageManager(root)
	}
}
