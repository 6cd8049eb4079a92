package legend

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"
)

// Completer is the completion capability the extractor depends on. The
// production implementation is *ollama.Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is the usable text one chunk produced under one prompt variant.
type Result struct {
	ChunkIndex int
	Variant    int
	Text       string
}

// Outcome is the final decision for one document: the assembled legend text
// and the prompt variant that produced it. Variant is VariantNone when no
// chunk produced a usable answer under either prompt.
type Outcome struct {
	Text    string
	Variant int
	Chunks  int
}

// Found reports whether any legend text was extracted.
func (o Outcome) Found() bool { return o.Variant != VariantNone }

// ExtractError reports a failed completion call for one chunk attempt. The
// attempt is not retried; the chunk counts as having produced nothing.
type ExtractError struct {
	ChunkIndex int
	Variant    int
	Err        error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract chunk %d (prompt %d): %v", e.ChunkIndex, e.Variant, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extractor runs chunked legend extraction with a two-prompt fallback.
type Extractor struct {
	completer Completer
	cfg       ChunkConfig
}

// NewExtractor validates the window parameters up front so a bad config
// fails before any document is attempted.
func NewExtractor(c Completer, cfg ChunkConfig) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Extractor{completer: c, cfg: cfg}, nil
}

// Extract runs the primary prompt variant over every chunk of text. If no
// chunk yields a usable answer, the secondary variant gets a full pass over
// the same chunks. A failed completion call is logged and the chunk counts
// as empty; only caller cancellation aborts the document.
func (e *Extractor) Extract(ctx context.Context, text string) (Outcome, error) {
	chunks, err := Split(text, e.cfg)
	if err != nil {
		return Outcome{}, err
	}

	variant := VariantPrimary
	results, err := e.attemptAll(ctx, chunks, variant)
	if err != nil {
		return Outcome{}, err
	}
	if len(results) == 0 {
		variant = VariantSecondary
		results, err = e.attemptAll(ctx, chunks, variant)
		if err != nil {
			return Outcome{}, err
		}
	}
	if len(results) == 0 {
		return Outcome{Variant: VariantNone, Chunks: len(chunks)}, nil
	}
	return Outcome{Text: Assemble(results), Variant: variant, Chunks: len(chunks)}, nil
}

// attemptAll issues exactly one request per chunk for the given variant and
// returns the usable results in chunk order. A response is usable when it is
// non-blank after trimming and does not contain the sentinel.
func (e *Extractor) attemptAll(ctx context.Context, chunks []Chunk, variant int) ([]Result, error) {
	var usable []Result
	for _, chunk := range chunks {
		answer, err := e.completer.Complete(ctx, BuildPrompt(variant, chunk.Text))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			attemptErr := &ExtractError{ChunkIndex: chunk.Index, Variant: variant, Err: err}
			log.Warn().Err(attemptErr).Int("chunk", chunk.Index).Int("prompt", variant).
				Msg("completion failed, chunk treated as empty")
			continue
		}
		answer = strings.TrimSpace(answer)
		if answer == "" || strings.Contains(answer, NoLegendSentinel) {
			continue
		}
		usable = append(usable, Result{ChunkIndex: chunk.Index, Variant: variant, Text: answer})
	}
	return usable, nil
}
