// Package config resolves settings from defaults, an optional TOML file,
// and GRADEKEY_* environment variables, in that order. Command-line flags
// override individual fields after Load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where Load looks for a config file when none is given.
const DefaultPath = "gradekey.toml"

type Config struct {
	Ollama OllamaConfig `toml:"ollama"`
	Chunk  ChunkConfig  `toml:"chunk"`
	Clean  CleanConfig  `toml:"clean"`
	Batch  BatchConfig  `toml:"batch"`
	PDF    PDFConfig    `toml:"pdf"`
	Serve  ServeConfig  `toml:"serve"`
	Log    LogConfig    `toml:"log"`
}

type OllamaConfig struct {
	URL       string `toml:"url" validate:"required,url"`
	Model     string `toml:"model" validate:"required"`
	Timeout   string `toml:"timeout" validate:"required"`
	RateLimit int    `toml:"rate_limit" validate:"gt=0"`
}

// ChunkConfig is the legend extraction window.
type ChunkConfig struct {
	Size    int `toml:"size" validate:"gt=0"`
	Overlap int `toml:"overlap" validate:"gte=0,ltfield=Size"`
}

type CleanConfig struct {
	ChunkSize int `toml:"chunk_size" validate:"gt=0"`
}

type BatchConfig struct {
	Workers   int  `toml:"workers" validate:"gte=1"`
	Limit     int  `toml:"limit" validate:"gte=0"`
	Overwrite bool `toml:"overwrite"`
}

type PDFConfig struct {
	FallbackPdftotext bool `toml:"fallback_pdftotext"`
}

type ServeConfig struct {
	Port           string `toml:"port" validate:"required"`
	APIKey         string `toml:"api_key"`
	MaxUploadBytes int64  `toml:"max_upload_bytes" validate:"gt=0"`
	QueueSize      int    `toml:"queue_size" validate:"gt=0"`
	Workers        int    `toml:"workers" validate:"gte=1"`
	JobTTL         string `toml:"job_ttl" validate:"required"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=trace debug info warn error"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Ollama: OllamaConfig{
			URL:       "http://localhost:11434",
			Model:     "qwen2.5:7b",
			Timeout:   "120s",
			RateLimit: 2,
		},
		Chunk: ChunkConfig{Size: 3000, Overlap: 1000},
		Clean: CleanConfig{ChunkSize: 2000},
		Batch: BatchConfig{Workers: 1},
		PDF:   PDFConfig{FallbackPdftotext: true},
		Serve: ServeConfig{
			Port:           "8091",
			MaxUploadBytes: 52428800, // 50MB
			QueueSize:      100,
			Workers:        1,
			JobTTL:         "1h",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load resolves the configuration. A missing file at path is fine; a file
// that exists but fails to parse is not.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Ollama.URL = envOr("GRADEKEY_OLLAMA_URL", cfg.Ollama.URL)
	cfg.Ollama.Model = envOr("GRADEKEY_OLLAMA_MODEL", cfg.Ollama.Model)
	cfg.Ollama.Timeout = envOr("GRADEKEY_OLLAMA_TIMEOUT", cfg.Ollama.Timeout)
	cfg.Ollama.RateLimit = envInt("GRADEKEY_OLLAMA_RATE_LIMIT", cfg.Ollama.RateLimit)

	cfg.Chunk.Size = envInt("GRADEKEY_CHUNK_SIZE", cfg.Chunk.Size)
	cfg.Chunk.Overlap = envInt("GRADEKEY_CHUNK_OVERLAP", cfg.Chunk.Overlap)
	cfg.Clean.ChunkSize = envInt("GRADEKEY_CLEAN_CHUNK_SIZE", cfg.Clean.ChunkSize)

	cfg.Batch.Workers = envInt("GRADEKEY_WORKERS", cfg.Batch.Workers)
	cfg.Batch.Overwrite = envBool("GRADEKEY_OVERWRITE", cfg.Batch.Overwrite)

	cfg.PDF.FallbackPdftotext = envBool("GRADEKEY_PDF_FALLBACK_PDFTOTEXT", cfg.PDF.FallbackPdftotext)

	cfg.Serve.Port = envOr("GRADEKEY_PORT", cfg.Serve.Port)
	cfg.Serve.APIKey = envOr("GRADEKEY_API_KEY", cfg.Serve.APIKey)
	cfg.Serve.MaxUploadBytes = envInt64("GRADEKEY_MAX_UPLOAD_BYTES", cfg.Serve.MaxUploadBytes)
	cfg.Serve.QueueSize = envInt("GRADEKEY_QUEUE_SIZE", cfg.Serve.QueueSize)
	cfg.Serve.Workers = envInt("GRADEKEY_SERVE_WORKERS", cfg.Serve.Workers)
	cfg.Serve.JobTTL = envOr("GRADEKEY_JOB_TTL", cfg.Serve.JobTTL)

	cfg.Log.Level = envOr("GRADEKEY_LOG_LEVEL", cfg.Log.Level)
}

// Validate checks field constraints plus the duration strings.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := time.ParseDuration(c.Ollama.Timeout); err != nil {
		return fmt.Errorf("invalid ollama timeout %q: %w", c.Ollama.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Serve.JobTTL); err != nil {
		return fmt.Errorf("invalid job ttl %q: %w", c.Serve.JobTTL, err)
	}
	return nil
}

// OllamaTimeout returns the parsed request timeout.
func (c Config) OllamaTimeout() time.Duration {
	d, err := time.ParseDuration(c.Ollama.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// JobTTL returns the parsed serve-mode job retention.
func (c Config) JobTTL() time.Duration {
	d, err := time.ParseDuration(c.Serve.JobTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
