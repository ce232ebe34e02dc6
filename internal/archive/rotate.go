// internal/archive/rotate.go
//
// Numbered archive rotation for output directories.
//
// Context
// -------
// Before a resource kind is rewritten, the previous output for the site is
// moved aside rather than deleted:
//
//	ee/<kind>/<site>/            → ee/<kind>/archive/<site>/<N>/
//
// Slots are plain base-10 directory names.  The next slot is one past the
// highest slot present, so gaps left by manual cleanup are never reused.
//
// Notes
// -----
//   - Entries that are not numbers count as 0; a stray README does not
//     break rotation.
//   - The archive root is created only when there is something to move.
//   - No rollback.  A failed rename leaves both trees where they were.
package archive

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-git/go-billy/v5"
)

// NextSlot returns one past the highest numbered entry under root.  A
// missing root yields 1.
func NextSlot(fs billy.Filesystem, root string) (int, error) {
	entries, err := fs.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("read archive %s: %w", root, err)
	}

	highest := 0
	for _, e := range entries {
		if n := slotNumber(e.Name()); n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// Rotate moves target to root/<next slot> and returns the slot.  When
// target does not exist Rotate does nothing and returns 0.
func Rotate(fs billy.Filesystem, target, root string) (int, error) {
	fi, err := fs.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", target, err)
	}
	if !fi.IsDir() {
		return 0, fmt.Errorf("rotate %s: not a directory", target)
	}

	if err := fs.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", root, err)
	}

	slot, err := NextSlot(fs, root)
	if err != nil {
		return 0, err
	}

	dst := fs.Join(root, strconv.Itoa(slot))
	if err := fs.Rename(target, dst); err != nil {
		return 0, fmt.Errorf("move %s to %s: %w", target, dst, err)
	}
	return slot, nil
}

func slotNumber(name string) int {
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
