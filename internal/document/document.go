// Package document holds the in-memory representation of a transcript file
// and the atomic write helper every artifact producer goes through.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is one transcript's full content, identified by its source
// filename. Immutable once loaded.
type Document struct {
	Name string // base filename, e.g. "smith_transcript.md"
	Path string // path the content was loaded from
	Text string
}

// Load reads a file fully into memory as a Document.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("load document: %w", err)
	}
	return Document{
		Name: filepath.Base(path),
		Path: path,
		Text: string(data),
	}, nil
}

// Stem returns the document name without its extension.
func (d Document) Stem() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// WriteAtomic writes text to path via a temp file in the same directory
// followed by a rename, so a reader never observes a partially written
// artifact.
func WriteAtomic(path, text string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}
