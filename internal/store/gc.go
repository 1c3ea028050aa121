package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ListObjects returns the hex digests of every blob in objects/, unordered.
// Grounded on the mark-and-sweep directory walk of
// creachadair/gocache's cachedir.Dir.PruneEntries, generalized here from a
// two-level directory/prefix layout to this store's flat objects/ directory.
func ListObjects(root string) ([]string, error) {
	dir := NewLayout(root).ObjectsDir()

	var names []string

	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() || isTempName(de.Name()) {
			return nil
		}

		names = append(names, de.Name())

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing objects: %w", err)
	}

	return names, nil
}

// ObjectSize returns the size in bytes of objects/<hash>.
func ObjectSize(root, hash string) (int64, error) {
	info, err := os.Stat(NewLayout(root).ObjectPath(hash))
	if err != nil {
		return 0, fmt.Errorf("stat object %s: %w", hash, err)
	}

	return info.Size(), nil
}

// RemoveObject deletes objects/<hash>. Missing objects are not an error.
func RemoveObject(root, hash string) error {
	err := os.Remove(NewLayout(root).ObjectPath(hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing object %s: %w", hash, err)
	}

	return nil
}

// ListPathIndexPaths returns the absolute paths mirrored under path-index/,
// reconstructed from each leaf file's location in the tree (the inverse of
// pathIndexFile).
func ListPathIndexPaths(root string) ([]string, error) {
	dir := NewLayout(root).PathIndexDir()

	var paths []string

	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}

		paths = append(paths, "/"+filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing path-index: %w", err)
	}

	return paths, nil
}

// RemovePathIndexEntry deletes the path-index/ leaf for path. Missing
// entries are not an error.
func RemovePathIndexEntry(root, path string) error {
	layout := NewLayout(root)

	err := os.Remove(pathIndexFile(layout, path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing path-index entry for %s: %w", path, err)
	}

	return nil
}

// PruneEmptyPathIndexDirs removes every now-empty directory under
// path-index/, deepest first, after a sweep of leaf entries (spec.md §4.6
// step 4: "remove empty directories in path-index/").
func PruneEmptyPathIndexDirs(root string) error {
	dir := NewLayout(root).PathIndexDir()

	var dirs []string

	err := filepath.WalkDir(dir, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if de.IsDir() && path != dir {
			dirs = append(dirs, path)
		}

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("walking path-index: %w", err)
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i]) // fails silently on non-empty directories
	}

	return nil
}

func isTempName(name string) bool {
	return len(name) >= 5 && name[:5] == ".tmp-"
}
