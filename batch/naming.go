package batch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultPrefix is the filename prefix used when no basename is given.
const DefaultPrefix = "imggen"

// imageExtensions are the suffixes that make an --output value a filename
// rather than a directory.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Filename returns the output filename for a 1-based slot index.
//
// Without a basename the result is imggen_001.png, imggen_002.png, and so on.
// With a basename it is {basename}.png for a single-image batch and
// {basename}_{index}.png otherwise.
func Filename(basename string, index, total int) string {
	if basename == "" {
		return fmt.Sprintf("%s_%03d.png", DefaultPrefix, index)
	}
	if total == 1 {
		return basename + ".png"
	}
	return fmt.Sprintf("%s_%d.png", basename, index)
}

// Filenames returns the filenames for slots 1..total in order.
func Filenames(basename string, total int) []string {
	names := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		names = append(names, Filename(basename, i, total))
	}
	return names
}

// ParseOutputPath splits an --output value into a directory and an
// optional basename. A value ending in an image extension names a file
// whose stem becomes the basename; anything else is a directory.
//
// The directory is returned as written, minus trailing separators, so
// "./images/" yields "./images" rather than a cleaned "images".
func ParseOutputPath(output string) (dir, basename string) {
	if output == "" {
		return ".", ""
	}

	ext := filepath.Ext(output)
	if !imageExtensions[strings.ToLower(ext)] {
		return trimSeparators(output), ""
	}

	name := output
	dir = "."
	if i := strings.LastIndexByte(output, filepath.Separator); i >= 0 {
		name = output[i+1:]
		dir = trimSeparators(output[:i+1])
	}
	return dir, strings.TrimSuffix(name, ext)
}

func trimSeparators(p string) string {
	trimmed := strings.TrimRight(p, string(filepath.Separator))
	if trimmed == "" {
		return string(filepath.Separator)
	}
	return trimmed
}

// joinPath joins dir and name without cleaning dir, so console output
// shows the directory the way the user typed it.
func joinPath(dir, name string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}
