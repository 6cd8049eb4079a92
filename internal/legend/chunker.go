// Package legend extracts the grade legend section from transcript text by
// sliding a chunk window over the document, prompting a language model once
// per chunk, and assembling the usable answers into a single artifact.
package legend

import "fmt"

const (
	DefaultChunkSize    = 3000
	DefaultChunkOverlap = 1000
)

// ChunkConfig controls the sliding window over a document's text.
type ChunkConfig struct {
	Size    int // window size in characters
	Overlap int // characters shared with the previous window
}

// DefaultChunkConfig returns the documented window defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

func (cfg ChunkConfig) validate() error {
	if cfg.Size <= 0 || cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return &ConfigError{Size: cfg.Size, Overlap: cfg.Overlap}
	}
	return nil
}

// ConfigError reports window parameters that cannot make monotonic progress
// through a document.
type ConfigError struct {
	Size    int
	Overlap int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunk config: size %d, overlap %d (need 0 <= overlap < size)", e.Size, e.Overlap)
}

// Chunk is one contiguous window of a document's text.
type Chunk struct {
	Index int
	Start int // byte offset of the window in the source text
	Text  string
}

// Split cuts text into windows of cfg.Size characters, each advanced by
// cfg.Size-cfg.Overlap from the previous one, so consecutive windows share
// exactly cfg.Overlap characters and their union covers the whole text.
// Text no longer than cfg.Size yields a single chunk.
func Split(text string, cfg ChunkConfig) ([]Chunk, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(text) <= cfg.Size {
		return []Chunk{{Index: 0, Start: 0, Text: text}}, nil
	}

	stride := cfg.Size - cfg.Overlap
	var chunks []Chunk
	for start := 0; start < len(text); start += stride {
		end := start + cfg.Size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, Text: text[start:end]})
		if end == len(text) {
			break
		}
	}
	return chunks, nil
}
