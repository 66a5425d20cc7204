package analysis

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/deadwood/pkg/config"
	"github.com/Sumatoshi-tech/deadwood/pkg/gitsafe"
	"github.com/Sumatoshi-tech/deadwood/pkg/jsparse"
)

// candidate is one discovered source file, identified by its
// project-relative slash path.
type candidate struct {
	modTime time.Time
	rel     string
	abs     string
	size    int64
}

// discoverer walks a project tree collecting parse candidates.
type discoverer struct {
	cfg     config.ScanConfig
	checker *gitsafe.Checker
	exclude map[string]struct{}
	visited map[string]struct{}
	root    string
	files   []candidate
}

// discover returns every parseable source file under root, sorted by
// relative path. Excluded directories, hidden directories, vendored
// paths, and git-ignored entries are left out entirely.
func discover(root string, cfg config.ScanConfig, checker *gitsafe.Checker) ([]candidate, error) {
	disc := &discoverer{
		root:    root,
		cfg:     cfg,
		checker: checker,
		exclude: make(map[string]struct{}, len(cfg.ExcludeDirs)),
		visited: make(map[string]struct{}),
	}

	for _, name := range cfg.ExcludeDirs {
		disc.exclude[name] = struct{}{}
	}

	if err := disc.walk(root, ""); err != nil {
		return nil, err
	}

	slices.SortFunc(disc.files, func(a, b candidate) int {
		return strings.Compare(a.rel, b.rel)
	})

	return disc.files, nil
}

// walk descends dir, recording candidates. rel is dir's project-relative
// slash path, empty at the root. Resolved directories are remembered so
// symlink cycles terminate.
func (d *discoverer) walk(dir, rel string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %s: %w", dir, err)
	}

	if _, seen := d.visited[resolved]; seen {
		return nil
	}

	d.visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()

		entryRel := name
		if rel != "" {
			entryRel = rel + "/" + name
		}

		entryAbs := filepath.Join(dir, name)

		isLink := entry.Type()&fs.ModeSymlink != 0
		if isLink && !d.cfg.FollowSymlinks {
			continue
		}

		var info os.FileInfo
		if isLink {
			info, err = os.Stat(entryAbs)
		} else {
			info, err = entry.Info()
		}

		if err != nil {
			// Dangling link or an entry that vanished mid-walk.
			continue
		}

		if info.IsDir() {
			skip, skipErr := d.skipDir(name, entryRel)
			if skipErr != nil {
				return skipErr
			}

			if skip {
				continue
			}

			if walkErr := d.walk(entryAbs, entryRel); walkErr != nil {
				return walkErr
			}

			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		if addErr := d.addFile(entryAbs, entryRel, info); addErr != nil {
			return addErr
		}
	}

	return nil
}

func (d *discoverer) skipDir(name, rel string) (bool, error) {
	if isHiddenDir(name) {
		return true, nil
	}

	if _, found := d.exclude[name]; found {
		return true, nil
	}

	return d.ignored(rel + "/")
}

func (d *discoverer) addFile(abs, rel string, info os.FileInfo) error {
	if jsparse.LanguageForFile(rel) == "" {
		return nil
	}

	if d.cfg.SkipVendored && enry.IsVendor(rel) {
		return nil
	}

	skip, err := d.ignored(rel)
	if err != nil {
		return err
	}

	if skip {
		return nil
	}

	d.files = append(d.files, candidate{
		rel:     rel,
		abs:     abs,
		size:    info.Size(),
		modTime: info.ModTime(),
	})

	return nil
}

func (d *discoverer) ignored(rel string) (bool, error) {
	if d.checker == nil {
		return false, nil
	}

	skip, err := d.checker.Ignored(rel)
	if err != nil {
		return false, fmt.Errorf("check ignore for %s: %w", rel, err)
	}

	return skip, nil
}

// isHiddenDir returns true for directories that start with a dot
// (e.g. .git), except for "." and ".." which are navigation entries.
func isHiddenDir(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
