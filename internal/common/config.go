package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/spec-matcher/constants"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
	Log     LogConfig     `yaml:"log"`
	PDF     PDFConfig     `yaml:"pdf"`
	LLM     LLMConfig     `yaml:"llm"`
	Export  ExportConfig  `yaml:"export"`
	Storage StorageConfig `yaml:"storage"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadMB      int           `yaml:"max_upload_mb"`
}

// PathsConfig holds the filesystem locations the pipeline reads and writes.
type PathsConfig struct {
	UploadDir   string `yaml:"upload_dir"`
	OutputDir   string `yaml:"output_dir"`
	CatalogPath string `yaml:"catalog_path"`
}

// LogConfig holds logger configuration. An empty Dir disables the file sink.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	Dir    string `yaml:"dir"`
}

// PDFConfig selects the text extraction backend.
type PDFConfig struct {
	Backend   string `yaml:"backend"` // native or pdftotext
	Pdftotext string `yaml:"pdftotext"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	ServerURL   string  `yaml:"server_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"`
}

// ExportConfig controls how spreadsheet saves are retried when the target is locked.
type ExportConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// StorageConfig holds run-history database settings. An empty path disables it.
type StorageConfig struct {
	RunsDBPath string `yaml:"runs_db_path"`
}

const (
	BackendNative    = "native"
	BackendPdftotext = "pdftotext"
)

// DefaultConfig returns the built-in configuration before file and env overrides.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8000",
			ReadTimeout:      30 * time.Second,
			GracefulShutdown: 15 * time.Second,
			MaxUploadMB:      64,
		},
		Paths: PathsConfig{
			UploadDir:   "uploads",
			OutputDir:   "outputs",
			CatalogPath: defaultCatalogPath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Dir:    "logs",
		},
		PDF: PDFConfig{
			Backend:   BackendNative,
			Pdftotext: "pdftotext",
		},
		LLM: LLMConfig{
			ServerURL:   "http://127.0.0.1:11434",
			Model:       constants.DefaultModel,
			Temperature: 0.1,
			NumCtx:      8192,
		},
		Export: ExportConfig{
			MaxAttempts: 5,
			Backoff:     time.Second,
			MaxBackoff:  10 * time.Second,
		},
		Storage: StorageConfig{
			RunsDBPath: filepath.Join("data", "runs.db"),
		},
	}
}

// LoadConfig layers defaults, an optional YAML file, .env and the process environment.
// path may be empty; CONFIG_PATH is consulted next.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; a missing file is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse config file %s", path), err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Server.ReadTimeout = getEnvAsDuration("HTTP_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.MaxUploadMB = getEnvAsInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)

	c.Paths.UploadDir = getEnv("UPLOAD_DIR", c.Paths.UploadDir)
	c.Paths.OutputDir = getEnv("OUTPUT_DIR", c.Paths.OutputDir)
	c.Paths.CatalogPath = getEnv("CATALOG_PATH", c.Paths.CatalogPath)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)

	c.PDF.Backend = getEnv("PDF_BACKEND", c.PDF.Backend)
	c.PDF.Pdftotext = getEnv("PDFTOTEXT_BIN", c.PDF.Pdftotext)

	c.LLM.ServerURL = getEnv("OLLAMA_HOST", c.LLM.ServerURL)
	c.LLM.Model = getEnv("OLLAMA_MODEL", c.LLM.Model)
	c.LLM.Temperature = getEnvAsFloat64("OLLAMA_TEMPERATURE", c.LLM.Temperature)
	c.LLM.NumCtx = getEnvAsInt("OLLAMA_NUM_CTX", c.LLM.NumCtx)

	c.Export.MaxAttempts = getEnvAsInt("SAVE_MAX_ATTEMPTS", c.Export.MaxAttempts)
	c.Export.Backoff = getEnvAsDuration("SAVE_BACKOFF", c.Export.Backoff)

	c.Storage.RunsDBPath = getEnv("RUNS_DB_PATH", c.Storage.RunsDBPath)
}

// defaultCatalogPath places internal_products.json next to the running binary.
func defaultCatalogPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "internal_products.json"
	}
	return filepath.Join(filepath.Dir(exe), "internal_products.json")
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("server.addr", c.Server.Addr, Required).
		Field("server.max_upload_mb", c.Server.MaxUploadMB, Positive).
		Field("paths.upload_dir", c.Paths.UploadDir, Required).
		Field("paths.output_dir", c.Paths.OutputDir, Required).
		Field("log.format", c.Log.Format, OneOf("text", "json")).
		Field("log.level", c.Log.Level, OneOf("debug", "info", "warn", "error")).
		Field("pdf.backend", c.PDF.Backend, OneOf(BackendNative, BackendPdftotext)).
		Field("llm.server_url", c.LLM.ServerURL, Required).
		Field("llm.model", c.LLM.Model, Required).
		Field("llm.temperature", c.LLM.Temperature, InRange(0, 2)).
		Field("llm.num_ctx", c.LLM.NumCtx, Positive).
		Field("export.max_attempts", c.Export.MaxAttempts, Positive).
		Field("export.backoff", c.Export.Backoff, Positive)
	return v.Err("CONFIG_ERROR")
}
