// Package file holds small filesystem helpers shared by the watch
// scanner.
package file

import (
	"io/fs"
	"path/filepath"
	"time"
)

// ModifiedAfter walks dir recursively and returns every regular file
// whose modification time is later than cutoff. Watch mode uses it to
// pick up documents dropped into the directory since the last scan.
func ModifiedAfter(dir string, cutoff time.Time) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			paths = append(paths, path)
		}
		return nil
	})

	return paths, err
}
