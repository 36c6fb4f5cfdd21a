// Package fifo writes newline-terminated command strings to the talon
// controller's named pipes. Writes never block indefinitely: the pipes
// are opened write-only and non-creating, and the controller is
// expected to have a reader already draining them.
package fifo

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is the well-known communication directory shared with the
// controller.
const Dir = "/usr/local/telescope/comm"

// Names of the two pipes the daemon writes to.
const (
	Tel   = "Tel.in"
	Focus = "Focus.in"
)

// Writer appends newline-terminated commands to a named pipe under Dir.
type Writer struct {
	dir string
}

// New returns a Writer rooted at dir (normally Dir; overridable for
// tests).
func New(dir string) *Writer {
	if dir == "" {
		dir = Dir
	}
	return &Writer{dir: dir}
}

// Write opens the named pipe write-only (non-creating) and appends cmd
// followed by a newline. It reports failure rather than blocking if no
// reader is present on a FIFO that requires one for open to complete;
// regular files (used by the virtual controller and tests) always
// succeed.
func (w *Writer) Write(name, cmd string) error {
	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("fifo: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("fifo: write %s: %w", path, err)
	}
	return nil
}
