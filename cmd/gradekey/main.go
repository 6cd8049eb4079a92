package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"github.com/dgallion1/gradekey/internal/api"
	"github.com/dgallion1/gradekey/internal/cleaner"
	"github.com/dgallion1/gradekey/internal/config"
	"github.com/dgallion1/gradekey/internal/legend"
	"github.com/dgallion1/gradekey/internal/ollama"
	"github.com/dgallion1/gradekey/internal/pipeline"
	"github.com/dgallion1/gradekey/internal/tabulate"
)

const usageText = `gradekey converts academic transcripts into CSV grade-legend data.

Usage: gradekey <command> [flags] [input-dir]

Commands:
  harvest   Extract raw text from source documents into <stem>.md files
  clean     Clean harvested text with the model
  legends   Extract grade legends from cleaned text
  csv       Convert non-empty legends into CODE,DESCRIPTION rows
  run       Run harvest, clean, legends, and csv in sequence
  serve     Start the HTTP API

Run "gradekey <command> -h" for command flags.
`

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "harvest":
		err = cmdHarvest(args)
	case "clean":
		err = cmdClean(args)
	case "legends":
		err = cmdLegends(args)
	case "csv":
		err = cmdCSV(args)
	case "run":
		err = cmdRun(args)
	case "serve":
		err = cmdServe(args)
	case "help", "-h", "-help", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// stageFlags are the flags every batch command shares.
type stageFlags struct {
	configPath string
	logLevel   string
	output     string
	model      string
	limit      int
	workers    int
	overwrite  bool
}

func newStageFlags(fs *flag.FlagSet, defaultOutput string) *stageFlags {
	sf := &stageFlags{}
	fs.StringVar(&sf.configPath, "config", config.DefaultPath, "TOML config file")
	fs.StringVar(&sf.logLevel, "log-level", "", "log level override (trace|debug|info|warn|error)")
	fs.StringVar(&sf.output, "o", defaultOutput, "output directory")
	fs.StringVar(&sf.model, "m", "", "ollama model override")
	fs.IntVar(&sf.limit, "n", 0, "max files to process (0 = all)")
	fs.IntVar(&sf.workers, "w", 0, "worker count")
	fs.BoolVar(&sf.overwrite, "overwrite", false, "reprocess files whose output already exists")
	return sf
}

// loadConfig resolves defaults, file, env, and the shared flag overrides.
// Validation is the caller's job once stage-specific overrides are applied.
func (sf *stageFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(sf.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if sf.logLevel != "" {
		cfg.Log.Level = sf.logLevel
	}
	if sf.model != "" {
		cfg.Ollama.Model = sf.model
	}
	if sf.workers > 0 {
		cfg.Batch.Workers = sf.workers
	}
	if sf.limit > 0 {
		cfg.Batch.Limit = sf.limit
	}
	if sf.overwrite {
		cfg.Batch.Overwrite = true
	}
	return cfg, nil
}

func (sf *stageFlags) runnerOptions(input string, cfg config.Config) pipeline.Options {
	return pipeline.Options{
		InputDir:  input,
		OutputDir: sf.output,
		Workers:   cfg.Batch.Workers,
		Limit:     cfg.Batch.Limit,
		Overwrite: cfg.Batch.Overwrite,
	}
}

func requireInputDir(fs *flag.FlagSet, cmd string) (string, error) {
	input := fs.Arg(0)
	if input == "" {
		return "", fmt.Errorf("%s: input directory argument is required", cmd)
	}
	return input, nil
}

func setupLogging(cfg config.Config, jsonOutput bool) {
	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(cfg.Log.Level),
		TimeFormat: "15:04:05",
	}
	if !jsonOutput {
		log.DefaultLogger.Writer = &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		}
	}
}

func newOllamaClient(cfg config.Config) *ollama.Client {
	return ollama.NewClient(
		ollama.WithBaseURL(cfg.Ollama.URL),
		ollama.WithModel(cfg.Ollama.Model),
		ollama.WithTimeout(cfg.OllamaTimeout()),
		ollama.WithRateLimit(cfg.Ollama.RateLimit),
	)
}

// readyClient builds the completion client and blocks until the service
// answers its readiness probe. Batch stages have no use for a dead host.
func readyClient(ctx context.Context, cfg config.Config) (*ollama.Client, error) {
	client := newOllamaClient(cfg)
	log.Info().Str("url", cfg.Ollama.URL).Str("model", cfg.Ollama.Model).Msg("waiting for ollama")
	if err := client.WaitReady(ctx, 0); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func cmdHarvest(args []string) error {
	fs := flag.NewFlagSet("harvest", flag.ExitOnError)
	sf := newStageFlags(fs, "output-raw")
	fs.Parse(args)

	input, err := requireInputDir(fs, "harvest")
	if err != nil {
		return err
	}
	cfg, err := sf.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, false)

	// Parsing is local CPU work, so harvest defaults to a wider pool
	// than the model-bound stages.
	if sf.workers <= 0 && cfg.Batch.Workers == 1 {
		cfg.Batch.Workers = 8
	}

	ctx, stop := signalContext()
	defer stop()

	stage := &pipeline.HarvestStage{FallbackPdftotext: cfg.PDF.FallbackPdftotext}
	_, err = pipeline.NewRunner(stage, sf.runnerOptions(input, cfg)).Run(ctx)
	return err
}

func cmdClean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	sf := newStageFlags(fs, "output-clean")
	chunkSize := fs.Int("chunk-size", 0, "cleanup chunk size in chars")
	fs.Parse(args)

	input, err := requireInputDir(fs, "clean")
	if err != nil {
		return err
	}
	cfg, err := sf.loadConfig()
	if err != nil {
		return err
	}
	if *chunkSize > 0 {
		cfg.Clean.ChunkSize = *chunkSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, false)

	ctx, stop := signalContext()
	defer stop()

	client, err := readyClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	stage := &pipeline.CleanStage{
		Cleaner: cleaner.New(client, cfg.Clean.ChunkSize),
		Model:   client.Model(),
	}
	_, err = pipeline.NewRunner(stage, sf.runnerOptions(input, cfg)).Run(ctx)
	return err
}

func cmdLegends(args []string) error {
	fs := flag.NewFlagSet("legends", flag.ExitOnError)
	sf := newStageFlags(fs, "output-legend-chunk")
	chunkSize := fs.Int("chunk-size", 0, "extraction window size in chars")
	overlap := fs.Int("overlap", -1, "window overlap in chars")
	fs.Parse(args)

	input, err := requireInputDir(fs, "legends")
	if err != nil {
		return err
	}
	cfg, err := sf.loadConfig()
	if err != nil {
		return err
	}
	if *chunkSize > 0 {
		cfg.Chunk.Size = *chunkSize
	}
	if *overlap >= 0 {
		cfg.Chunk.Overlap = *overlap
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, false)

	ctx, stop := signalContext()
	defer stop()

	client, err := readyClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	window := legend.ChunkConfig{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}
	ex, err := legend.NewExtractor(client, window)
	if err != nil {
		return err
	}
	stage := &pipeline.LegendStage{Extractor: ex, Model: client.Model(), Window: window}
	_, err = pipeline.NewRunner(stage, sf.runnerOptions(input, cfg)).Run(ctx)
	return err
}

func cmdCSV(args []string) error {
	fs := flag.NewFlagSet("csv", flag.ExitOnError)
	sf := newStageFlags(fs, "output-legend-csv")
	fs.Parse(args)

	input, err := requireInputDir(fs, "csv")
	if err != nil {
		return err
	}
	cfg, err := sf.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, false)

	ctx, stop := signalContext()
	defer stop()

	client, err := readyClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	stage := &pipeline.CSVStage{Formatter: tabulate.New(client), Model: client.Model()}
	_, err = pipeline.NewRunner(stage, sf.runnerOptions(input, cfg)).Run(ctx)
	return err
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "TOML config file")
	logLevel := fs.String("log-level", "", "log level override (trace|debug|info|warn|error)")
	model := fs.String("m", "", "ollama model override")
	limit := fs.Int("n", 0, "max files per stage (0 = all)")
	workers := fs.Int("w", 0, "worker count")
	overwrite := fs.Bool("overwrite", false, "reprocess files whose output already exists")
	fs.Parse(args)

	input, err := requireInputDir(fs, "run")
	if err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *model != "" {
		cfg.Ollama.Model = *model
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *limit > 0 {
		cfg.Batch.Limit = *limit
	}
	if *overwrite {
		cfg.Batch.Overwrite = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, false)

	ctx, stop := signalContext()
	defer stop()

	opts := func(in, out string, workers int) pipeline.Options {
		return pipeline.Options{
			InputDir:  in,
			OutputDir: out,
			Workers:   workers,
			Limit:     cfg.Batch.Limit,
			Overwrite: cfg.Batch.Overwrite,
		}
	}
	harvestWorkers := cfg.Batch.Workers
	if *workers <= 0 && harvestWorkers == 1 {
		harvestWorkers = 8
	}

	// Harvest needs no model, so it runs before the readiness probe and
	// its artifacts survive even when the Ollama host is down.
	harvest := &pipeline.HarvestStage{FallbackPdftotext: cfg.PDF.FallbackPdftotext}
	if _, err := pipeline.NewRunner(harvest, opts(input, "output-raw", harvestWorkers)).Run(ctx); err != nil {
		return err
	}
	fmt.Println()

	client, err := readyClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	cleanStage := &pipeline.CleanStage{
		Cleaner: cleaner.New(client, cfg.Clean.ChunkSize),
		Model:   client.Model(),
	}
	if _, err := pipeline.NewRunner(cleanStage, opts("output-raw", "output-clean", cfg.Batch.Workers)).Run(ctx); err != nil {
		return err
	}
	fmt.Println()

	window := legend.ChunkConfig{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}
	ex, err := legend.NewExtractor(client, window)
	if err != nil {
		return err
	}
	legendStage := &pipeline.LegendStage{Extractor: ex, Model: client.Model(), Window: window}
	if _, err := pipeline.NewRunner(legendStage, opts("output-clean", "output-legend-chunk", cfg.Batch.Workers)).Run(ctx); err != nil {
		return err
	}
	fmt.Println()

	csvStage := &pipeline.CSVStage{Formatter: tabulate.New(client), Model: client.Model()}
	if _, err := pipeline.NewRunner(csvStage, opts("output-legend-chunk", "output-legend-csv", cfg.Batch.Workers)).Run(ctx); err != nil {
		return err
	}

	snap := client.Stats.Snapshot()
	fmt.Printf("\nLLM calls: %d (%d errors), avg %.0fms, p95 %.0fms\n",
		snap.Calls, snap.Errors, snap.AvgMs, snap.P95Ms)
	return nil
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "TOML config file")
	logLevel := fs.String("log-level", "", "log level override")
	port := fs.String("port", "", "listen port override")
	model := fs.String("m", "", "ollama model override")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *port != "" {
		cfg.Serve.Port = *port
	}
	if *model != "" {
		cfg.Ollama.Model = *model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	setupLogging(cfg, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The service can come up before its model host does; jobs fail
	// individually until Ollama answers.
	client := newOllamaClient(cfg)
	if err := client.WaitReady(ctx, 0); err != nil {
		log.Warn().Err(err).Msg("ollama not ready, continuing startup")
	}

	window := legend.ChunkConfig{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}
	ex, err := legend.NewExtractor(client, window)
	if err != nil {
		return err
	}
	worker := pipeline.NewWorker(
		cleaner.New(client, cfg.Clean.ChunkSize),
		ex,
		tabulate.New(client),
		cfg.PDF.FallbackPdftotext,
	)
	orch := pipeline.NewOrchestrator(cfg, worker)
	orch.Start(ctx)

	srv := api.NewServer(orch, client, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Serve.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		client.Close()
	}()

	log.Info().Str("port", cfg.Serve.Port).Str("model", cfg.Ollama.Model).Msg("starting gradekey api")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
