package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supplyrag/config"
	"supplyrag/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "supplyrag",
	Short: "Extract supplier relationships from documents with retrieval and reranking",
	Long: `supplyrag splits documents into overlapping windows, embeds them into an
HNSW index, retrieves and reranks the passages relevant to a query and asks
a language model to extract buyer/supplier relationships from them.

Example usage:
  supplyrag init                       # Write supplyrag.yaml
  supplyrag parse                      # data/raw -> data/parsed
  supplyrag chunk                      # data/parsed -> chunks.jsonl
  supplyrag build                      # chunks.jsonl -> index snapshot
  supplyrag query -q "foundry partners"
  supplyrag extract --out relationships.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = logging.New(level, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI. An interrupt cancels the command's context, so
// provider calls and rate limit waits stop promptly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./supplyrag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// path resolves a configured path against the root directory.
func path(p string) string {
	return config.Resolve(rootDir, p)
}
