package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/petal-labs/imggen/core"
)

// Metadata is the sidecar record written next to each generated image.
//
// OriginalPrompt, Provider and Model are always written. The pointer
// fields are written only when non-nil, and RevisedPrompt is also skipped
// when it matches OriginalPrompt. Extras follow in order; entries with a
// nil value or a key that shadows a named field are skipped.
type Metadata struct {
	OriginalPrompt string
	Provider       string
	Model          string

	RevisedPrompt *string
	Created       *string
	Quality       *string
	Size          *string
	CostUSD       *float64

	Extras []core.Field
}

var reservedKeys = map[string]bool{
	"original_prompt": true,
	"provider":        true,
	"model":           true,
	"revised_prompt":  true,
	"created":         true,
	"quality":         true,
	"size":            true,
	"cost_usd":        true,
}

// NewMetadata builds the record for a successful generation.
func NewMetadata(prompt, provider, model string, img *core.GeneratedImage) Metadata {
	m := Metadata{
		OriginalPrompt: prompt,
		Provider:       provider,
		Model:          model,
	}
	if img == nil {
		return m
	}
	m.RevisedPrompt = img.RevisedPrompt
	m.Created = img.Created
	m.Quality = img.Quality
	m.Size = img.Size
	m.CostUSD = img.CostUSD
	m.Extras = img.Extras
	return m
}

// MarshalJSON encodes the record as a JSON object with a stable key order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	put := func(key string, value any) error {
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		k, _ := json.Marshal(key)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := put("original_prompt", m.OriginalPrompt); err != nil {
		return nil, err
	}
	if err := put("provider", m.Provider); err != nil {
		return nil, err
	}
	if err := put("model", m.Model); err != nil {
		return nil, err
	}

	optional := []struct {
		key   string
		value any
		ok    bool
	}{
		{"revised_prompt", m.RevisedPrompt, m.RevisedPrompt != nil && *m.RevisedPrompt != m.OriginalPrompt},
		{"created", m.Created, m.Created != nil},
		{"quality", m.Quality, m.Quality != nil},
		{"size", m.Size, m.Size != nil},
		{"cost_usd", m.CostUSD, m.CostUSD != nil},
	}
	for _, f := range optional {
		if !f.ok {
			continue
		}
		if err := put(f.key, f.value); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(m.Extras))
	for _, f := range m.Extras {
		if f.Value == nil || reservedKeys[f.Key] || seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		if err := put(f.Key, f.Value); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MetadataPath returns the sidecar path for an image: the image path with
// its extension replaced by .json.
func MetadataPath(dir, filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return filepath.Join(dir, base+".json")
}

// WriteMetadata writes m as indented JSON next to dir/filename. The record
// is written to a temporary file in dir and renamed into place, so the
// sidecar either exists complete or not at all.
func WriteMetadata(dir, filename string, m Metadata) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", filename, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format metadata for %s: %w", filename, err)
	}
	out.WriteByte('\n')

	path := MetadataPath(dir, filename)
	tmp, err := os.CreateTemp(dir, ".imggen-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to save metadata file %s: %w", filepath.Base(path), err)
	}
	return nil
}
