package analysis

import (
	"io/fs"
	"path/filepath"
)

// DirSize returns the total size in bytes of all regular files under dir,
// following nothing. Any walk error yields 0 rather than a partial sum.
func DirSize(dir string) int64 {
	var total int64

	err := filepath.WalkDir(dir, func(_ string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		total += info.Size()

		return nil
	})
	if err != nil {
		return 0
	}

	return total
}
