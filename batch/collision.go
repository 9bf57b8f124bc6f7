package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CheckCollisions reports which of the filenames a batch of count images
// would produce already exist in dir. Existing names are returned in
// ascending slot order. The filesystem is not modified.
func CheckCollisions(dir string, count int, basename string) (bool, []string, error) {
	var existing []string
	for _, name := range Filenames(basename, count) {
		_, err := os.Stat(filepath.Join(dir, name))
		switch {
		case err == nil:
			existing = append(existing, name)
		case errors.Is(err, fs.ErrNotExist):
		default:
			return false, nil, fmt.Errorf("failed to check %s: %w", name, err)
		}
	}
	return len(existing) > 0, existing, nil
}

// CollisionError aborts a batch whose target files already exist.
// It is returned before any provider is contacted.
type CollisionError struct {
	Dir   string
	Files []string
}

// Error renders the collision report with remediation steps.
func (e *CollisionError) Error() string {
	var b strings.Builder
	b.WriteString("File collision detected\n\n")
	fmt.Fprintf(&b, "The following files already exist in %s:\n", e.Dir)
	for _, f := range e.Files {
		fmt.Fprintf(&b, "  - %s\n", f)
	}
	b.WriteString("\nPlease:\n")
	b.WriteString("  1. Delete or rename these files, OR\n")
	b.WriteString("  2. Use a different --output directory\n\n")
	b.WriteString("No API calls were made (no charges incurred).")
	return b.String()
}
