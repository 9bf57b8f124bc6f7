package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// loadPrompt returns the inline prompt, or the trimmed contents of the
// prompt file.
func loadPrompt(text, file string) (string, error) {
	if text != "" {
		return text, nil
	}
	if file == "" {
		return "", errors.New("Must provide either --prompt or --file")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("Prompt file not found: %s", file)
		}
		return "", fmt.Errorf("failed to read prompt file %s: %w", file, err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("Prompt file is empty: %s", file)
	}
	return content, nil
}

// loadReferences returns the positional reference paths, or the non-blank
// lines of the references file.
func loadReferences(paths []string, file string) ([]string, error) {
	if len(paths) > 0 && file != "" {
		return nil, errors.New("Cannot specify both positional reference images and --references file")
	}
	if file == "" {
		return paths, nil
	}

	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("References file not found: %s", file)
		}
		return nil, fmt.Errorf("failed to open references file %s: %w", file, err)
	}
	defer f.Close()

	var refs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			refs = append(refs, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read references file %s: %w", file, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("References file is empty: %s", file)
	}
	return refs, nil
}
