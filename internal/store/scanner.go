package store

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// errFoundMatch stops the walk early once a match is located.
var errFoundMatch = errors.New("found match")

// findInPool walks poolRoot for a file whose name exactly matches name,
// skipping excludeDir (the caller's own scratch directory). Traversal order
// is not guaranteed; identically named artifacts in different sibling
// requests are content-identical by contract, so the first match wins.
// Unreadable or concurrently vanishing entries are skipped, not errors.
func findInPool(poolRoot, name, excludeDir string) (string, bool) {
	var match string

	err := filepath.WalkDir(poolRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Sibling directories are cleaned up by their own requests and
			// may disappear mid-walk.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if excludeDir != "" && path == excludeDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			match = path
			return errFoundMatch
		}
		return nil
	})

	if errors.Is(err, errFoundMatch) {
		return match, true
	}
	return "", false
}
