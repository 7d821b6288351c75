//go:build !windows

package files

import "os"

func renameAtomic(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Lstat already reports every kind of link here.
func isReparsePoint(string) (bool, error) {
	return false, nil
}

// syncDir makes the rename of a finished book durable.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
