package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunking.WindowChars != 0 {
		t.Errorf("expected WindowChars unset, got %d", cfg.Chunking.WindowChars)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("expected provider gemini, got %s", cfg.Embedding.Provider)
	}
	if cfg.Paths.ChunksFile != "data/chunks/chunks.jsonl" {
		t.Errorf("unexpected ChunksFile %s", cfg.Paths.ChunksFile)
	}
	if err := cfg.ValidateChunking(); err == nil {
		t.Error("expected default chunking config to be rejected")
	}
}

func TestExampleConfigValid(t *testing.T) {
	if err := ExampleConfig().Validate(); err != nil {
		t.Fatalf("example config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "supplyrag.yaml")

	content := `
chunking:
  window_chars: 500
  stride: 400
retrieve:
  top_k: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunking.WindowChars != 500 {
		t.Errorf("expected WindowChars=500, got %d", cfg.Chunking.WindowChars)
	}
	if cfg.Chunking.Stride != 400 {
		t.Errorf("expected Stride=400, got %d", cfg.Chunking.Stride)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.Model != "gemini-embedding-001" {
		t.Errorf("expected default model to survive partial YAML, got %s", cfg.Embedding.Model)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CHUNKING_MAX_CHARS", "900")
	t.Setenv("HNSW_EFSEARCH", "77")
	t.Setenv("EMBEDDING_RPM", "30")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunking.WindowChars != 900 {
		t.Errorf("expected WindowChars=900, got %d", cfg.Chunking.WindowChars)
	}
	if cfg.Index.EfSearch != 77 {
		t.Errorf("expected EfSearch=77, got %d", cfg.Index.EfSearch)
	}
	if cfg.Embedding.RequestsPerMinute != 30 {
		t.Errorf("expected RequestsPerMinute=30, got %f", cfg.Embedding.RequestsPerMinute)
	}
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("HNSW_M", "sixteen")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fe.Field != "HNSW_M" {
		t.Errorf("expected field HNSW_M, got %s", fe.Field)
	}
}

func TestLoadFromDir_DotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("RERANKER_TOP_M=7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("RERANKER_TOP_M") })

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Rerank.TopM != 7 {
		t.Errorf("expected TopM=7 from .env, got %d", cfg.Rerank.TopM)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "supplyrag.yaml")

	content := `
rerank:
  top_m: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Rerank.TopM != 5 {
		t.Errorf("expected TopM=5, got %d", cfg.Rerank.TopM)
	}
}

func TestValidateChunking(t *testing.T) {
	tests := []struct {
		name    string
		window  int
		stride  int
		wantErr bool
	}{
		{"overlap", 500, 400, false},
		{"no overlap", 500, 500, false},
		{"gaps", 500, 600, true},
		{"zero window", 0, 1, true},
		{"zero stride", 10, 0, true},
		{"negative", -1, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Chunking = ChunkingConfig{WindowChars: tt.window, Stride: tt.stride}
			err := cfg.ValidateChunking()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChunking() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmbedding_UnknownProvider(t *testing.T) {
	cfg := ExampleConfig()
	cfg.Embedding.Provider = "word2vec"
	if err := cfg.ValidateEmbedding(); err == nil {
		t.Error("expected unsupported provider error")
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("/root", "index"); got != filepath.Join("/root", "index") {
		t.Errorf("unexpected %s", got)
	}
	if got := Resolve("/root", "/abs/index"); got != "/abs/index" {
		t.Errorf("unexpected %s", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supplyrag.yaml")
	if err := ExampleConfig().Save(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index.M != 32 || cfg.Rerank.TopM != 10 {
		t.Errorf("unexpected values after save: %+v %+v", cfg.Index, cfg.Rerank)
	}
}

func TestValidateExtract_Diversification(t *testing.T) {
	cfg := ExampleConfig()
	cfg.Extract.DedupJaccard = 1.5
	if err := cfg.ValidateExtract(); err == nil {
		t.Error("expected dedup_jaccard range error")
	}

	cfg = ExampleConfig()
	cfg.Extract.MMRLambda = -0.1
	if err := cfg.ValidateExtract(); err == nil {
		t.Error("expected mmr_lambda range error")
	}

	cfg.Extract.DedupJaccard = 0
	if err := cfg.ValidateExtract(); err != nil {
		t.Errorf("lambda is ignored when dedup is disabled: %v", err)
	}
}

func TestValidateEmbedding_Ollama(t *testing.T) {
	cfg := ExampleConfig()
	cfg.Embedding.Provider = "ollama"
	if err := cfg.ValidateEmbedding(); err != nil {
		t.Errorf("ollama should be accepted: %v", err)
	}
}

func TestValidateBuildIgnoresQuerySections(t *testing.T) {
	cfg := ExampleConfig()
	cfg.Extract.Provider = "gpt-typo"
	cfg.Rerank.TopM = 0
	if err := cfg.ValidateBuild(); err != nil {
		t.Errorf("build settings are valid: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected full validation to fail")
	}

	cfg = ExampleConfig()
	cfg.Index.M = 0
	if err := cfg.ValidateBuild(); err == nil {
		t.Error("expected index error")
	}
}
