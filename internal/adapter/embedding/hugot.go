package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// HugotProvider runs a sentence-transformers ONNX model in process.
type HugotProvider struct {
	session  *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	model    string
}

// NewHugotProvider loads model from modelDir, downloading it from the
// Hugging Face hub on first use.
func NewHugotProvider(model, modelDir string) (*HugotProvider, error) {
	modelPath, err := prepareModel(model, modelDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "supplyrag-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create feature extraction pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create feature extraction pipeline: %w", err)
	}

	return &HugotProvider{session: session, pipeline: pipeline, model: model}, nil
}

func prepareModel(model, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(model, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(model, modelDir, opts)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", model, err)
	}
	return downloaded, nil
}

func (p *HugotProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := p.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return result.Embeddings, nil
}

func (p *HugotProvider) ModelName() string {
	return p.model
}

func (p *HugotProvider) Close() error {
	return p.session.Destroy()
}
