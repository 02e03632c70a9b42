package lfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Scratch is the backup directory that holds originals while they are out of
// the working tree. Only one repair can use a given location at a time.
type Scratch struct {
	dir string
}

// AcquireScratch wipes any directory left at dir by an earlier failed run and
// creates it empty. It reports whether a stale directory was removed.
func AcquireScratch(dir string) (*Scratch, bool, error) {
	stale := false
	if _, err := os.Lstat(dir); err == nil {
		stale = true
		if err := os.RemoveAll(dir); err != nil {
			return nil, stale, fmt.Errorf("failed to remove stale scratch directory: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, stale, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Scratch{dir: dir}, stale, nil
}

// Dir returns the scratch location
func (s *Scratch) Dir() string {
	return s.dir
}

// Backup copies root/rel into the scratch directory under the same relative path
func (s *Scratch) Backup(root, rel string) error {
	return copyFile(filepath.Join(root, filepath.FromSlash(rel)), filepath.Join(s.dir, filepath.FromSlash(rel)))
}

// Restore copies every backed-up file back below root and returns their
// relative paths.
func (s *Scratch) Restore(root string) ([]string, error) {
	var restored []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(root, rel)); err != nil {
			return fmt.Errorf("failed to restore %s: %w", filepath.ToSlash(rel), err)
		}
		restored = append(restored, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// Release removes the scratch directory. Call it only after a successful repair.
func (s *Scratch) Release() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove scratch directory: %w", err)
	}
	return nil
}

// copyFile copies a file from src to dst with atomic write.
// Symlinks are recreated rather than followed.
func copyFile(src, dst string) error {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	srcInfo, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if srcInfo.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.Symlink(target, dst)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	// Create temp file in destination directory
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".lfsmend-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode().Perm()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}
