package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"supplyrag/internal/adapter/fs"
	"supplyrag/internal/usecase"
)

var parseForce bool

var parseCmd = &cobra.Command{
	Use:   "parse [raw-dir]",
	Short: "Parse raw text documents into page records",
	Long: `Parse every selected source file into <parsed_dir>/<doc_id>.jsonl, one page
per line. Pages are separated by form feeds. Documents that were already
parsed are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().BoolVar(&parseForce, "force", false, "re-parse documents that already have output")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	rawDir := path(cfg.Paths.RawDir)
	if len(args) > 0 {
		rawDir = args[0]
	}

	walker := fs.NewWalker(cfg.Parse.Includes, cfg.Parse.Excludes)
	uc := usecase.NewParseUseCase(walker, path(cfg.Paths.ParsedDir), cfg.Parse.Workers, parseForce, logger)

	result, err := uc.Run(cmd.Context(), rawDir)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}

	fmt.Printf("Parsing complete:\n")
	fmt.Printf("  Files parsed:  %d\n", result.FilesParsed)
	fmt.Printf("  Files skipped: %d (already parsed)\n", result.FilesSkipped)
	fmt.Printf("  Pages:         %d\n", result.Pages)
	printWarnings(result.Errors)
	return nil
}

func printWarnings(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("\nWarnings:\n")
	for _, e := range errs {
		fmt.Printf("  - %s\n", e)
	}
}
