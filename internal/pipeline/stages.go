package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/dgallion1/gradekey/internal/cleaner"
	"github.com/dgallion1/gradekey/internal/document"
	"github.com/dgallion1/gradekey/internal/legend"
	"github.com/dgallion1/gradekey/internal/parser"
	"github.com/dgallion1/gradekey/internal/tabulate"
)

// HarvestStage extracts raw text from transcript source files (pdf, docx,
// html, and friends) into .md files.
type HarvestStage struct {
	FallbackPdftotext bool
}

func (s *HarvestStage) Name() string     { return "harvest" }
func (s *HarvestStage) Describe() string { return "" }

func (s *HarvestStage) Match(path string) bool {
	return parser.IsSupportedExtension(path)
}

func (s *HarvestStage) OutputName(name string) string {
	return stem(name) + ".md"
}

func (s *HarvestStage) Process(ctx context.Context, doc document.Document, outPath string) (StageResult, error) {
	p, err := parser.ForFile(doc.Name)
	if err != nil {
		return StageResult{}, err
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = s.FallbackPdftotext
	}
	text, err := p.Parse(strings.NewReader(doc.Text), doc.Name)
	if err != nil {
		return StageResult{}, fmt.Errorf("parse %s: %w", doc.Name, err)
	}
	if err := document.WriteAtomic(outPath, text); err != nil {
		return StageResult{}, err
	}
	return StageResult{
		Detail:   fmt.Sprintf("%d chars", len(text)),
		Produced: strings.TrimSpace(text) != "",
	}, nil
}

// CleanStage reformats harvested .md files through the model.
type CleanStage struct {
	Cleaner *cleaner.Cleaner
	Model   string
}

func (s *CleanStage) Name() string { return "clean" }

func (s *CleanStage) Describe() string {
	return fmt.Sprintf("Model: %s", s.Model)
}

func (s *CleanStage) Match(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".md"
}

func (s *CleanStage) OutputName(name string) string { return name }

func (s *CleanStage) Process(ctx context.Context, doc document.Document, outPath string) (StageResult, error) {
	cleaned, err := s.Cleaner.Clean(ctx, doc.Text)
	if err != nil {
		return StageResult{}, err
	}
	if err := document.WriteAtomic(outPath, cleaned); err != nil {
		return StageResult{}, err
	}
	return StageResult{Detail: fmt.Sprintf("%d chars", len(cleaned)), Produced: true}, nil
}

// LegendStage runs legend extraction over cleaned .md files, writing one
// .txt artifact per document whether or not a legend was found.
type LegendStage struct {
	Extractor *legend.Extractor
	Model     string
	Window    legend.ChunkConfig
}

func (s *LegendStage) Name() string { return "legends" }

func (s *LegendStage) Describe() string {
	return fmt.Sprintf("Model: %s | Chunks: %d chars, %d overlap", s.Model, s.Window.Size, s.Window.Overlap)
}

func (s *LegendStage) Match(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".md"
}

func (s *LegendStage) OutputName(name string) string {
	return stem(name) + ".txt"
}

func (s *LegendStage) Process(ctx context.Context, doc document.Document, outPath string) (StageResult, error) {
	outcome, err := s.Extractor.Extract(ctx, doc.Text)
	if err != nil {
		return StageResult{}, err
	}
	if err := legend.WriteArtifact(outPath, outcome.Text); err != nil {
		return StageResult{}, err
	}
	if !outcome.Found() {
		return StageResult{Detail: fmt.Sprintf("no legend (%d chunks)", outcome.Chunks)}, nil
	}
	return StageResult{
		Detail:   fmt.Sprintf("found (%d chars, %d chunks, prompt %d)", len(outcome.Text), outcome.Chunks, outcome.Variant),
		Produced: true,
	}, nil
}

// CSVStage converts non-empty legend .txt files to CODE,DESCRIPTION CSV.
// When the model produces nothing valid the artifact is still written,
// empty, so a rerun skips the file.
type CSVStage struct {
	Formatter *tabulate.Formatter
	Model     string
}

func (s *CSVStage) Name() string { return "csv" }

func (s *CSVStage) Describe() string {
	return fmt.Sprintf("Model: %s", s.Model)
}

func (s *CSVStage) Match(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".txt" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func (s *CSVStage) OutputName(name string) string {
	return stem(name) + ".csv"
}

func (s *CSVStage) Process(ctx context.Context, doc document.Document, outPath string) (StageResult, error) {
	rows, err := s.Formatter.Tabulate(ctx, doc.Text)
	if err != nil {
		if ctx.Err() != nil {
			return StageResult{}, err
		}
		log.Warn().Err(err).Str("file", doc.Name).Msg("csv conversion failed, writing empty artifact")
	}

	content := ""
	res := StageResult{Detail: "failed"}
	if err == nil && len(rows) > 0 {
		content = tabulate.Format(rows)
		res = StageResult{Detail: fmt.Sprintf("%d entries", len(rows)), Produced: true}
	}
	if werr := document.WriteAtomic(outPath, content); werr != nil {
		return StageResult{}, werr
	}
	return res, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
