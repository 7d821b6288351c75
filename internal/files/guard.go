package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrSymlink is returned when a book or log would be written through a
// symbolic link or, on Windows, a reparse point.
var ErrSymlink = errors.New("refusing to write through a link")

// RejectSymlinkPath checks every existing component of path. The walk ends
// at the first missing component; nothing below it can be a link yet.
func RejectSymlinkPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for _, p := range ancestry(abs) {
		info, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", p, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s (symlink at %s)", ErrSymlink, path, p)
		}
		reparse, err := isReparsePoint(p)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", p, err)
		}
		if reparse {
			return fmt.Errorf("%w: %s (reparse point at %s)", ErrSymlink, path, p)
		}
	}
	return nil
}

// ancestry lists abs and its parents from the outermost down, leaving out
// the filesystem root.
func ancestry(abs string) []string {
	var chain []string
	for p := filepath.Clean(abs); ; {
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		chain = append(chain, p)
		p = parent
	}
	slices.Reverse(chain)
	return chain
}
