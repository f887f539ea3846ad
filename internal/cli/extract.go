package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"supplyrag/internal/adapter/analyzer"
	"supplyrag/internal/adapter/extractor"
	"supplyrag/internal/adapter/retriever"
	"supplyrag/internal/usecase"
)

var (
	extractQuery string
	extractOut   string
	extractTopM  int
	promptOnly   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract buyer/supplier relationships from the ranked passages",
	Long: `Retrieve and rerank passages for the extraction query, then ask the language
model for a JSON array of relationships. The array is written to stdout or
to --out. With --prompt-only the prompt is printed instead and no model is
called.

Examples:
  supplyrag extract --out relationships.json
  supplyrag extract -q "logistics partners" --prompt-only`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractQuery, "query", "q", "", "retrieval query (default from config)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write the JSON array to this file")
	extractCmd.Flags().IntVarP(&extractTopM, "top-m", "m", 0, "passages to show the model (default from config)")
	extractCmd.Flags().BoolVar(&promptOnly, "prompt-only", false, "print the extraction prompt and exit")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	query := extractQuery
	if query == "" {
		query = cfg.Extract.Query
	}

	p, err := openQueryPipeline(ctx, 0, extractTopM, true)
	if err != nil {
		return err
	}
	defer p.Close()

	tok := analyzer.NewTokenizer(false)
	var diversify usecase.Diversifier
	if cfg.Extract.DedupJaccard > 0 {
		diversify = retriever.NewDiversifier(cfg.Extract.MMRLambda, cfg.Extract.DedupJaccard, tok)
	}
	pack := usecase.NewPackUseCase(tok)

	if promptOnly {
		ranked, err := p.retrieve.Retrieve(ctx, query)
		if err != nil {
			return err
		}
		uc := usecase.NewExtractUseCase(p.retrieve, diversify, pack, nil, cfg.Extract.ContextTokens, logger)
		fmt.Println(extractor.BuildPrompt(uc.Prepare(ranked).Candidates))
		return nil
	}

	ex, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	result, err := usecase.NewExtractUseCase(p.retrieve, diversify, pack, ex, cfg.Extract.ContextTokens, logger).Extract(ctx, query)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	var w io.Writer = os.Stdout
	if extractOut != "" {
		f, err := os.Create(extractOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result.Relationships); err != nil {
		return err
	}

	logger.Info("extraction complete",
		slog.Int("passages", len(result.Candidates)),
		slog.Int("relationships", len(result.Relationships)))
	if extractOut != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d relationships to %s\n", len(result.Relationships), extractOut)
	}
	return nil
}
