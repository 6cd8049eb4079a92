// Package cleaner reformats raw harvested transcript text with a language
// model so the legend pass sees readable lines instead of extraction noise.
package cleaner

import (
	"context"
	"strings"

	"github.com/phuslu/log"
)

// DefaultChunkSize is the cleanup window in characters. Smaller than the
// legend window because the model must reproduce the whole chunk, not just
// quote one section of it.
const DefaultChunkSize = 2000

// Completer is the completion capability the cleaner depends on.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const promptHead = `Clean up this university transcript text. Output ONLY the cleaned content.

CRITICAL RULES:
1. Output ALL data - NEVER use "..." or "continued" or skip anything
2. NO preamble like "Here's the cleaned..." - start directly with the content
3. NO markdown code blocks (no triple backticks)
4. Merge broken lines into complete sentences
5. Use markdown tables for course/grade data

Raw text:
`

const promptTail = `

Cleaned output (start immediately, no preamble):`

// BuildPrompt wraps one raw chunk in the cleanup instructions.
func BuildPrompt(chunkText string) string {
	return promptHead + chunkText + promptTail
}

// SplitBoundaries cuts text into chunks of at most size characters. Each cut
// prefers a paragraph break, then a line break, then a space; paragraph and
// line breaks in the first half of the window are passed over so cuts land
// late in the window.
func SplitBoundaries(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for remaining != "" {
		if len(remaining) <= size {
			chunks = append(chunks, remaining)
			break
		}
		window := remaining[:size]
		breakAt := strings.LastIndex(window, "\n\n")
		if breakAt == -1 || breakAt < size/2 {
			breakAt = strings.LastIndex(window, "\n")
		}
		if breakAt == -1 || breakAt < size/2 {
			breakAt = strings.LastIndex(window, " ")
		}
		if breakAt == -1 {
			breakAt = size
		}
		chunks = append(chunks, strings.TrimSpace(remaining[:breakAt]))
		remaining = strings.TrimSpace(remaining[breakAt:])
	}
	return chunks
}

// Cleaner runs the cleanup pass chunk by chunk.
type Cleaner struct {
	completer Completer
	chunkSize int
}

func New(c Completer, chunkSize int) *Cleaner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Cleaner{completer: c, chunkSize: chunkSize}
}

// Clean reformats text and returns the cleaned version. A chunk whose
// completion call fails or comes back blank keeps its original text, so
// cleanup degrades to a passthrough rather than losing content. Only caller
// cancellation aborts the document.
func (c *Cleaner) Clean(ctx context.Context, text string) (string, error) {
	chunks := SplitBoundaries(text, c.chunkSize)
	cleaned := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		out, err := c.completer.Complete(ctx, BuildPrompt(chunk))
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warn().Err(err).Int("chunk", i).Msg("cleanup call failed, keeping original text")
			out = chunk
		}
		out = strings.TrimSpace(out)
		if out == "" {
			out = chunk
		}
		cleaned = append(cleaned, out)
	}
	return strings.Join(cleaned, "\n\n"), nil
}
