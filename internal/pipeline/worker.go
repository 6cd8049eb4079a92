package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/dgallion1/gradekey/internal/cleaner"
	"github.com/dgallion1/gradekey/internal/legend"
	"github.com/dgallion1/gradekey/internal/parser"
	"github.com/dgallion1/gradekey/internal/tabulate"
)

// Worker processes a single transcript job.
type Worker struct {
	cleaner   *cleaner.Cleaner
	extractor *legend.Extractor
	formatter *tabulate.Formatter

	pdfFallback bool
}

func NewWorker(cl *cleaner.Cleaner, ex *legend.Extractor, fm *tabulate.Formatter, pdfFallback bool) *Worker {
	return &Worker{
		cleaner:     cl,
		extractor:   ex,
		formatter:   fm,
		pdfFallback: pdfFallback,
	}
}

// Process runs the full transcript pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("unsupported format")
		job.Fail("parsing", err)
		return
	}
	if pdfParser, ok := p.(*parser.PDFParser); ok {
		pdfParser.FallbackPdftotext = w.pdfFallback
	}

	text, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("parse failed")
		job.Fail("parsing", fmt.Errorf("parse: %w", err))
		return
	}
	job.ReleaseFileData()
	if strings.TrimSpace(text) == "" {
		log.Warn().Str("job_id", job.ID).Msg("no extractable text")
		job.Fail("parsing", fmt.Errorf("no extractable text in %s", job.Filename))
		return
	}
	log.Info().Str("job_id", job.ID).Int("chars", len(text)).Msg("parsed document")

	// Phase 2: Clean
	job.SetStatus(StatusCleaning, "cleaning")
	cleaned, err := w.cleaner.Clean(ctx, text)
	if err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("cleanup aborted")
		job.Fail("cleaning", err)
		return
	}

	// Phase 3: Extract the grade legend.
	job.SetStatus(StatusExtracting, "extracting")
	outcome, err := w.extractor.Extract(ctx, cleaned)
	if err != nil {
		log.Error().Str("job_id", job.ID).Err(err).Msg("extraction aborted")
		job.Fail("extracting", err)
		return
	}
	job.SetLegend(outcome.Text, outcome.Variant, outcome.Chunks)
	log.Info().
		Str("job_id", job.ID).
		Int("chunks", outcome.Chunks).
		Int("prompt", outcome.Variant).
		Int("legend_chars", len(outcome.Text)).
		Msg("extraction complete")

	// Phase 4: Tabulate to CSV. Skipped when no legend was found;
	// a conversion failure keeps the legend and completes the job.
	if outcome.Found() {
		job.SetStatus(StatusTabulating, "tabulating")
		rows, err := w.formatter.Tabulate(ctx, outcome.Text)
		if err != nil {
			if ctx.Err() != nil {
				log.Error().Str("job_id", job.ID).Err(err).Msg("tabulation aborted")
				job.Fail("tabulating", err)
				return
			}
			log.Warn().Str("job_id", job.ID).Err(err).Msg("csv conversion failed")
			job.AddError(fmt.Sprintf("csv: %s", err))
			job.SetCSV("", 0)
		} else {
			job.SetCSV(tabulate.Format(rows), len(rows))
			log.Info().Str("job_id", job.ID).Int("rows", len(rows)).Msg("tabulation complete")
		}
	}

	job.SetStatus(StatusCompleted, "done")
}
