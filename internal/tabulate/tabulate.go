// Package tabulate turns extracted legend text into validated
// CODE,DESCRIPTION rows.
package tabulate

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// MaxCodeLen is the longest accepted grade code. Real transcripts top out
// around four letters (WP, AU, INC, PASS).
const MaxCodeLen = 4

// Completer is the completion capability the formatter depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const promptHead = `Convert to CSV: CODE,DESCRIPTION

Only letter codes (A, B, W, WP, AU, I, P). No symbols, no header.

`

const promptTail = `

CSV:`

// BuildPrompt wraps legend text in the CSV conversion instructions.
func BuildPrompt(legendText string) string {
	return promptHead + legendText + promptTail
}

// Row is one validated legend entry.
type Row struct {
	Code        string
	Description string
}

// ParseRows validates a model response line by line, keeping rows of the
// form code,description where the code is letters only and at most
// MaxCodeLen long. Everything else the model emitted is dropped.
func ParseRows(response string) []Row {
	var rows []Row
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, ",") {
			continue
		}
		code, desc, _ := strings.Cut(line, ",")
		code = strings.TrimSpace(code)
		if code == "" || len(code) > MaxCodeLen || !isAlpha(code) {
			continue
		}
		rows = append(rows, Row{Code: code, Description: strings.TrimSpace(desc)})
	}
	return rows
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Format renders rows back to CSV text, one entry per line, no header.
func Format(rows []Row) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.Code+","+r.Description)
	}
	return strings.Join(lines, "\n")
}

// Formatter converts legend text to rows through the model.
type Formatter struct {
	completer Completer
}

func New(c Completer) *Formatter {
	return &Formatter{completer: c}
}

// Tabulate sends the legend text for CSV conversion and returns the rows
// that survive validation. An empty result means the model produced nothing
// usable; callers decide what artifact that becomes.
func (f *Formatter) Tabulate(ctx context.Context, legendText string) ([]Row, error) {
	out, err := f.completer.Complete(ctx, BuildPrompt(legendText))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("convert legend to csv: %w", err)
	}
	return ParseRows(out), nil
}
