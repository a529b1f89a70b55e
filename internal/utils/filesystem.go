package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}
	return nil
}

func EnsureDirectoryExists(fsys afero.Fs, dirPath string) error {
	if err := ValidatePath(dirPath); err != nil {
		return err
	}
	return fsys.MkdirAll(dirPath, 0755)
}

func IsDirectory(fsys afero.Fs, path string) bool {
	info, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Lstat does not follow symlinks when the filesystem supports it.
func Lstat(fsys afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fsys.Stat(path)
}

// Exists reports whether anything (file, dir or dangling symlink) is at path.
func Exists(fsys afero.Fs, path string) bool {
	_, err := Lstat(fsys, path)
	return err == nil
}

// MoveFile renames src to dst. When the two sit on different filesystems it
// copies into a temp file next to dst, syncs, renames it into place, and
// only then removes src, so an interruption never leaves a partial dst.
func MoveFile(fsys afero.Fs, src, dst string) error {
	err := fsys.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return copyThenRemove(fsys, src, dst)
}

func copyThenRemove(fsys afero.Fs, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return err
	}

	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := afero.TempFile(fsys, filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fsys.Remove(tmpPath)
		return fmt.Errorf("failed to sync copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpPath)
		return err
	}
	if err := fsys.Rename(tmpPath, dst); err != nil {
		fsys.Remove(tmpPath)
		return err
	}

	_ = fsys.Chmod(dst, info.Mode().Perm())
	_ = fsys.Chtimes(dst, info.ModTime(), info.ModTime())

	// The copy is complete; dropping the source finishes the move.
	if err := fsys.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return nil
}
