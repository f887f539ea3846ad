package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Parse     ParseConfig     `yaml:"parse"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Extract   ExtractConfig   `yaml:"extract"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PathsConfig holds artifact locations, relative to the root directory.
type PathsConfig struct {
	RawDir     string `yaml:"raw_dir"`
	ParsedDir  string `yaml:"parsed_dir"`
	ChunksFile string `yaml:"chunks_file"`
	IndexDir   string `yaml:"index_dir"`
}

// ParseConfig holds source document selection.
type ParseConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	Workers  int      `yaml:"workers"`
}

// ChunkingConfig holds sliding window parameters. Both are required.
type ChunkingConfig struct {
	WindowChars int `yaml:"window_chars"`
	Stride      int `yaml:"stride"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`    // "gemini", "openai", "ollama", "hugot", "hash"
	Model             string  `yaml:"model"`       // e.g., "gemini-embedding-001"
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string  `yaml:"base_url"`
	Project           string  `yaml:"project"`
	Location          string  `yaml:"location"`
	ModelDir          string  `yaml:"model_dir"` // hugot model cache
	Dimension         int     `yaml:"dimension"` // hash provider only
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
}

// IndexConfig holds HNSW graph parameters.
type IndexConfig struct {
	M              int   `yaml:"m"`
	EfConstruction int   `yaml:"ef_construction"`
	EfSearch       int   `yaml:"ef_search"`
	Seed           int64 `yaml:"seed"`
	KeepSnapshots  int   `yaml:"keep_snapshots"` // 0 = keep all
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int `yaml:"top_k"`
	CacheSize       int `yaml:"cache_size"`
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// RerankConfig holds relevance model configuration.
type RerankConfig struct {
	Provider       string `yaml:"provider"` // "cohere", "lexical"
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	BaseURL        string `yaml:"base_url"`
	MaxTokens      int    `yaml:"max_tokens"`
	BatchSize      int    `yaml:"batch_size"`
	TopM           int    `yaml:"top_m"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// ExtractConfig holds the generative extraction configuration.
type ExtractConfig struct {
	Provider       string  `yaml:"provider"` // "gemini", "openai", "ollama"
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	BaseURL        string  `yaml:"base_url"`
	Project        string  `yaml:"project"`
	Location       string  `yaml:"location"`
	Query          string  `yaml:"query"`
	ContextTokens  int     `yaml:"context_tokens"` // prompt budget, 0 = no limit
	MMRLambda      float64 `yaml:"mmr_lambda"`
	DedupJaccard   float64 `yaml:"dedup_jaccard"` // 0 disables diversification
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultQuery is the retrieval query used when none is given.
const DefaultQuery = "Extract explicit buyer-supplier, contract manufacturing, distributors, logistics, cloud/software provider relationships."

// DefaultConfig returns the default configuration. Numeric pipeline
// parameters are left unset and must come from the config file or the
// environment.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			RawDir:     "data/raw",
			ParsedDir:  "data/parsed",
			ChunksFile: "data/chunks/chunks.jsonl",
			IndexDir:   "index",
		},
		Parse: ParseConfig{
			Includes: []string{"**/*.txt", "**/*.md"},
			Excludes: []string{"**/.git/**"},
			Workers:  4,
		},
		Embedding: EmbeddingConfig{
			Provider:       "gemini",
			Model:          "gemini-embedding-001",
			APIKeyEnv:      "GEMINI_API_KEY",
			Location:       "us-central1",
			ModelDir:       "models",
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
		Retrieve: RetrieveConfig{
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Rerank: RerankConfig{
			Provider:       "cohere",
			Model:          "rerank-english-v3.0",
			APIKeyEnv:      "COHERE_API_KEY",
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Extract: ExtractConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			APIKeyEnv:      "GEMINI_API_KEY",
			Location:       "us-central1",
			Query:          DefaultQuery,
			TimeoutSeconds: 120,
			MaxRetries:     2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ExampleConfig returns a complete configuration with working values,
// written by the init command.
func ExampleConfig() *Config {
	cfg := DefaultConfig()
	cfg.Chunking = ChunkingConfig{WindowChars: 1800, Stride: 1500}
	cfg.Embedding.BatchSize = 16
	cfg.Embedding.RequestsPerMinute = 60
	cfg.Index = IndexConfig{M: 32, EfConstruction: 200, EfSearch: 64, Seed: 42, KeepSnapshots: 3}
	cfg.Retrieve.TopK = 50
	cfg.Rerank.MaxTokens = 512
	cfg.Rerank.BatchSize = 32
	cfg.Rerank.TopM = 10
	cfg.Extract.ContextTokens = 8000
	cfg.Extract.MMRLambda = 0.7
	cfg.Extract.DedupJaccard = 0.8
	return cfg
}

// Load loads configuration from a YAML file, then applies .env and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for supplyrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "supplyrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".supplyrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	if err := loadDotEnv(dir); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve returns p joined to root unless it is already absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// CheckpointPath returns the build checkpoint database path.
func CheckpointPath(indexDir string) string {
	return filepath.Join(indexDir, "checkpoint.db")
}

// loadDotEnv loads dir/.env without overriding variables already set.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays the environment variables understood by the pipeline.
func applyEnv(cfg *Config) error {
	var errs []error

	intVar := func(name string, dst *int) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, &FieldError{Field: name, Reason: fmt.Sprintf("not an integer: %q", v)})
			return
		}
		*dst = n
	}
	floatVar := func(name string, dst *float64) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, &FieldError{Field: name, Reason: fmt.Sprintf("not a number: %q", v)})
			return
		}
		*dst = f
	}
	stringVar := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}

	intVar("CHUNKING_MAX_CHARS", &cfg.Chunking.WindowChars)
	intVar("CHUNKING_STRIDE", &cfg.Chunking.Stride)
	intVar("EMBEDDING_BATCH", &cfg.Embedding.BatchSize)
	floatVar("EMBEDDING_RPM", &cfg.Embedding.RequestsPerMinute)
	stringVar("EMBEDDING_MODEL", &cfg.Embedding.Model)
	intVar("HNSW_M", &cfg.Index.M)
	intVar("HNSW_EFCON", &cfg.Index.EfConstruction)
	intVar("HNSW_EFSEARCH", &cfg.Index.EfSearch)
	intVar("RETRIEVE_TOP_K", &cfg.Retrieve.TopK)
	stringVar("RERANKER_MODEL", &cfg.Rerank.Model)
	intVar("RERANKER_MAX_TOKENS", &cfg.Rerank.MaxTokens)
	intVar("RERANKER_BATCH", &cfg.Rerank.BatchSize)
	intVar("RERANKER_TOP_M", &cfg.Rerank.TopM)
	stringVar("GOOGLE_CLOUD_PROJECT", &cfg.Embedding.Project)
	stringVar("GOOGLE_CLOUD_REGION", &cfg.Embedding.Location)
	stringVar("GOOGLE_CLOUD_PROJECT", &cfg.Extract.Project)
	stringVar("GOOGLE_CLOUD_REGION", &cfg.Extract.Location)
	stringVar("LLM_MODEL", &cfg.Extract.Model)

	return errors.Join(errs...)
}
