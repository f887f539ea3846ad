package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"supplyrag/internal/adapter/chunker"
	"supplyrag/internal/usecase"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split parsed documents into overlapping windows",
	Long: `Split every parsed document into windows of chunking.window_chars characters,
advancing chunking.stride characters at a time, and write them to the chunk
store. Chunk IDs depend only on the document ID and window position.`,
	Args: cobra.NoArgs,
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.ValidateChunking(); err != nil {
		return err
	}

	ck, err := chunker.NewWindowChunker(cfg.Chunking.WindowChars, cfg.Chunking.Stride)
	if err != nil {
		return err
	}

	out := path(cfg.Paths.ChunksFile)
	result, err := usecase.NewChunkUseCase(ck, logger).Run(path(cfg.Paths.ParsedDir), out)
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}

	fmt.Printf("Chunking complete:\n")
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Skipped:   %d (empty)\n", result.Skipped)
	fmt.Printf("  Chunks:    %d\n", result.Chunks)
	printWarnings(result.Errors)
	fmt.Printf("\nChunks stored at: %s\n", out)
	return nil
}
