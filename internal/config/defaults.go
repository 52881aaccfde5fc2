package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Provider.ClassifyTemperature == 0 {
		cfg.Provider.ClassifyTemperature = 0.3
	}
	if cfg.Provider.OrganizeTemperature == 0 {
		cfg.Provider.OrganizeTemperature = 0.5
	}
	if cfg.Provider.ClassifyMaxTokens == 0 {
		cfg.Provider.ClassifyMaxTokens = 800
	}
	if cfg.Provider.StrategyMaxTokens == 0 {
		cfg.Provider.StrategyMaxTokens = 1000
	}
	if cfg.Provider.OrganizeMaxTokens == 0 {
		cfg.Provider.OrganizeMaxTokens = 2000
	}
	if cfg.Provider.ClassifyTimeoutSec == 0 {
		cfg.Provider.ClassifyTimeoutSec = 60
	}
	if cfg.Provider.StrategyTimeoutSec == 0 {
		cfg.Provider.StrategyTimeoutSec = 90
	}
	if cfg.Provider.OrganizeTimeoutSec == 0 {
		cfg.Provider.OrganizeTimeoutSec = 120
	}
	if cfg.Recognizer.Language == "" {
		cfg.Recognizer.Language = "eng"
	}
	if cfg.Recognizer.TimeoutSec == 0 {
		cfg.Recognizer.TimeoutSec = 30
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/seiri/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Similarity.StorePath == "" {
		cfg.Similarity.StorePath = "/usr/local/var/seiri/vectorstore"
	}
	if cfg.Similarity.Collection == "" {
		cfg.Similarity.Collection = "study_notes"
	}
	if cfg.Similarity.MergeThreshold == 0 {
		cfg.Similarity.MergeThreshold = 0.8
	}
	if cfg.Similarity.ClassifyTopK == 0 {
		cfg.Similarity.ClassifyTopK = 3
	}
	if cfg.Similarity.BatchTopK == 0 {
		cfg.Similarity.BatchTopK = 5
	}
	if cfg.Notes.OutputDir == "" {
		cfg.Notes.OutputDir = "/usr/local/var/seiri/notes"
	}
	if cfg.Notes.BatchSize == 0 {
		cfg.Notes.BatchSize = 5
	}
	if cfg.History.DatabasePath == "" {
		cfg.History.DatabasePath = "/usr/local/var/seiri/history.db"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".gif"}
	}
}
