// Package pipeline drives transcript processing: batch runs over a
// directory for the CLI, and queued jobs for serve mode.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/dgallion1/gradekey/internal/document"
)

// Stage is one batch pass over an input directory. Implementations write
// their own artifact so each stage keeps its artifact semantics.
type Stage interface {
	// Name identifies the stage in logs and output.
	Name() string
	// Describe returns an extra header line for the run banner, or "".
	Describe() string
	// Match reports whether an input file belongs to this stage.
	Match(path string) bool
	// OutputName maps an input filename to its artifact filename.
	OutputName(name string) string
	// Process handles one document and writes its artifact to outPath.
	Process(ctx context.Context, doc document.Document, outPath string) (StageResult, error)
}

// StageResult is one document's outcome within a stage.
type StageResult struct {
	Detail   string // human-readable note for the progress line
	Produced bool   // whether the stage considers the document productive
}

// Options control a batch run.
type Options struct {
	InputDir  string
	OutputDir string
	Workers   int
	Limit     int  // max files to process, 0 for all
	Overwrite bool // reprocess files whose artifact already exists
}

// Summary aggregates one batch run.
type Summary struct {
	Total     int
	Processed int
	Failed    int
	Skipped   int
	Produced  int
	Elapsed   time.Duration
}

type fileOutcome struct {
	name     string
	detail   string
	produced bool
	took     time.Duration
	err      error
}

// Runner drives one stage over a directory with per-document failure
// isolation: a document that fails is reported and skipped, never fatal
// for the batch.
type Runner struct {
	stage Stage
	opts  Options
}

func NewRunner(stage Stage, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{stage: stage, opts: opts}
}

// Run discovers input files, applies the limit and skip-existing filters,
// processes every remaining document, and prints progress plus a summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now()

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	files, skipped, err := r.discover()
	if err != nil {
		return Summary{}, err
	}

	fmt.Printf("Stage: %s\n", r.stage.Name())
	if desc := r.stage.Describe(); desc != "" {
		fmt.Println(desc)
	}
	fmt.Printf("Input: %s\n", r.opts.InputDir)
	fmt.Printf("Output: %s\n", r.opts.OutputDir)
	if skipped > 0 {
		fmt.Printf("Skipped: %d existing files\n", skipped)
	}
	fmt.Printf("Files: %d  Workers: %d\n\n", len(files), r.opts.Workers)

	sum := Summary{Total: len(files), Skipped: skipped}
	if len(files) == 0 {
		fmt.Println("No files to process.")
		sum.Elapsed = time.Since(start)
		return sum, nil
	}

	jobs := make(chan string, len(files))
	for _, path := range files {
		jobs <- path
	}
	close(jobs)

	results := make(chan fileOutcome, len(files))
	var wg sync.WaitGroup
	for range r.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					results <- fileOutcome{name: filepath.Base(path), err: ctx.Err()}
					continue
				}
				results <- r.processOne(ctx, path)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for out := range results {
		sum.Processed++
		if out.err != nil {
			sum.Failed++
			log.Error().Err(out.err).Str("file", out.name).Str("stage", r.stage.Name()).Msg("document failed")
			fmt.Printf("[%d/%d] %s: failed: %v\n", sum.Processed, sum.Total, out.name, out.err)
			continue
		}
		if out.produced {
			sum.Produced++
		}
		perMin, eta := progressRate(start, sum.Processed, sum.Total)
		fmt.Printf("[%d/%d] %s: %s (%.1fs) | %.1f/min ETA %s\n",
			sum.Processed, sum.Total, out.name, out.detail, out.took.Seconds(), perMin, eta.Round(time.Second))
	}

	sum.Elapsed = time.Since(start)
	fmt.Println()
	fmt.Printf("Completed: %d files (%d errors)\n", sum.Processed-sum.Failed, sum.Failed)
	fmt.Printf("With output: %d/%d\n", sum.Produced, sum.Total)
	fmt.Printf("Total time: %.1fs (%.1f files/min)\n", sum.Elapsed.Seconds(), perMinute(sum.Processed, sum.Elapsed))

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

// discover lists matching input files in sorted order, truncates to the
// limit, then drops files whose artifact already exists unless overwriting.
func (r *Runner) discover() ([]string, int, error) {
	entries, err := os.ReadDir(r.opts.InputDir)
	if err != nil {
		return nil, 0, fmt.Errorf("read input dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(r.opts.InputDir, e.Name())
		if !r.stage.Match(path) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)

	if r.opts.Limit > 0 && len(files) > r.opts.Limit {
		files = files[:r.opts.Limit]
	}

	skipped := 0
	if !r.opts.Overwrite {
		kept := files[:0]
		for _, path := range files {
			outPath := filepath.Join(r.opts.OutputDir, r.stage.OutputName(filepath.Base(path)))
			if _, err := os.Stat(outPath); err == nil {
				skipped++
				continue
			}
			kept = append(kept, path)
		}
		files = kept
	}
	return files, skipped, nil
}

func (r *Runner) processOne(ctx context.Context, path string) fileOutcome {
	name := filepath.Base(path)
	start := time.Now()

	doc, err := document.Load(path)
	if err != nil {
		return fileOutcome{name: name, err: err}
	}
	outPath := filepath.Join(r.opts.OutputDir, r.stage.OutputName(name))
	res, err := r.stage.Process(ctx, doc, outPath)
	if err != nil {
		return fileOutcome{name: name, took: time.Since(start), err: err}
	}
	return fileOutcome{name: name, detail: res.Detail, produced: res.Produced, took: time.Since(start)}
}

func progressRate(start time.Time, done, total int) (perMin float64, eta time.Duration) {
	elapsed := time.Since(start)
	if done == 0 || elapsed <= 0 {
		return 0, 0
	}
	perFile := elapsed / time.Duration(done)
	return perMinute(done, elapsed), time.Duration(total-done) * perFile
}

func perMinute(done int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(done) / elapsed.Minutes()
}
