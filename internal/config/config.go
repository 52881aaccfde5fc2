// Package config provides configuration loading and structs for the seiri pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Provider   ProviderConfig   `yaml:"provider"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Notes      NotesConfig      `yaml:"notes"`
	History    HistoryConfig    `yaml:"history"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProviderConfig holds the completion model endpoint settings. The endpoint
// must be OpenAI-compatible (chat completions).
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	ClassifyTemperature float64 `yaml:"classify_temperature"`
	OrganizeTemperature float64 `yaml:"organize_temperature"`
	ClassifyMaxTokens   int     `yaml:"classify_max_tokens"`
	StrategyMaxTokens   int     `yaml:"strategy_max_tokens"`
	OrganizeMaxTokens   int     `yaml:"organize_max_tokens"`
	// Timeouts in seconds, scaled to payload size: single-classification
	// calls shortest, batch-organization calls longest.
	ClassifyTimeoutSec int `yaml:"classify_timeout_sec"`
	StrategyTimeoutSec int `yaml:"strategy_timeout_sec"`
	OrganizeTimeoutSec int `yaml:"organize_timeout_sec"`
}

// Validate checks the setup-time invariants for the provider. A missing
// endpoint or model aborts the run before any items are processed.
func (p *ProviderConfig) Validate() error {
	if p.BaseURL == "" {
		return fmt.Errorf("provider base_url must be set")
	}
	if p.Model == "" {
		return fmt.Errorf("provider model must be set")
	}
	return nil
}

// RecognizerConfig holds the OCR service endpoint settings.
type RecognizerConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Language   string `yaml:"language"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EmbeddingConfig holds ONNX embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SimilarityConfig holds the vector store and duplicate-detection settings.
type SimilarityConfig struct {
	StorePath  string `yaml:"store_path"`
	Collection string `yaml:"collection"`
	// MergeThreshold is the minimum 0-1 similarity for treating a new
	// note as a duplicate of an existing one.
	MergeThreshold float64 `yaml:"merge_threshold"`
	// ClassifyTopK prior records are retrieved as context for
	// single-item classification; BatchTopK for batch-scope calls.
	ClassifyTopK int `yaml:"classify_top_k"`
	BatchTopK    int `yaml:"batch_top_k"`
}

// NotesConfig holds output document settings.
type NotesConfig struct {
	OutputDir string `yaml:"output_dir"`
	// BatchSize is how many classified items accumulate before the
	// batch organizer runs.
	BatchSize int `yaml:"batch_size"`
}

// HistoryConfig holds the processing-history database settings.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WatchConfig holds image directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false
// when unset (photographs land in a single inbox directory).
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Similarity.StorePath = expandPath(cfg.Similarity.StorePath, configDir)
	cfg.Notes.OutputDir = expandPath(cfg.Notes.OutputDir, configDir)
	cfg.History.DatabasePath = expandPath(cfg.History.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
