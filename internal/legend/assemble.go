package legend

import (
	"fmt"
	"strings"

	"github.com/dgallion1/gradekey/internal/document"
)

// Assemble concatenates usable results in chunk order and collapses exact
// duplicate lines, which the window overlap otherwise repeats. Blank lines
// pass through untouched.
func Assemble(results []Result) string {
	var lines []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, line := range strings.Split(r.Text, "\n") {
			if line != "" && seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// AssemblyError reports a failed artifact write. Fatal for the document,
// not for the batch.
type AssemblyError struct {
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// WriteArtifact writes the assembled legend text to path. The artifact is
// written even when text is empty, so downstream stages can distinguish
// "processed, nothing found" from "not processed". The write goes through a
// temp file and rename; a crash mid-write leaves no artifact at all rather
// than a truncated one.
func WriteArtifact(path, text string) error {
	if err := document.WriteAtomic(path, text); err != nil {
		return &AssemblyError{Path: path, Err: err}
	}
	return nil
}
