package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"supplyrag/config"
	"supplyrag/internal/adapter/index"
	"supplyrag/internal/adapter/store"
	"supplyrag/internal/usecase"
)

var buildFresh bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the chunk store and publish a new index snapshot",
	Long: `Embed every chunk, build the HNSW graph and write a new snapshot under
<index_dir>/snapshots. CURRENT is switched to the snapshot only once it is
complete. Vectors are checkpointed per batch, so an interrupted build resumes
where it stopped and unchanged chunks are not embedded again. Chunks whose
text changed are always re-embedded. --fresh discards the checkpoint.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolVar(&buildFresh, "fresh", false, "discard checkpointed vectors")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.ValidateBuild(); err != nil {
		return err
	}
	ctx := cmd.Context()

	embedder, closer, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	indexDir := path(cfg.Paths.IndexDir)
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	cp, reset, err := store.OpenCheckpoint(config.CheckpointPath(indexDir), cfg)
	if err != nil {
		return err
	}
	defer cp.Close()
	if reset {
		fmt.Println("Embedding configuration changed, checkpoint cleared")
	}
	if buildFresh {
		if err := cp.Clear(); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	uc := usecase.NewBuildUseCase(embedder, cp, store.NewSnapshots(indexDir), usecase.BuildOptions{
		Params: index.Params{
			M:              cfg.Index.M,
			EfConstruction: cfg.Index.EfConstruction,
			EfSearch:       cfg.Index.EfSearch,
			Seed:           cfg.Index.Seed,
		},
		ChunkChars:  cfg.Chunking.WindowChars,
		ChunkStride: cfg.Chunking.Stride,
		Keep:        cfg.Index.KeepSnapshots,
	}, logger)

	result, err := uc.Run(ctx, path(cfg.Paths.ChunksFile), newProgress())
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\nBuild complete:\n")
	fmt.Printf("  Snapshot:  %s\n", result.SnapshotID)
	fmt.Printf("  Vectors:   %d (dim %d)\n", result.Count, result.Dim)
	fmt.Printf("  Embedded:  %d\n", result.Embedded)
	fmt.Printf("  Reused:    %d (checkpoint)\n", result.Reused)
	if len(result.Pruned) > 0 {
		fmt.Printf("  Pruned:    %d old snapshots\n", len(result.Pruned))
	}
	fmt.Printf("\nIndex stored at: %s\n", result.Dir)
	return nil
}

// newProgress returns a progress callback that draws a bar with an ETA.
func newProgress() usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var mu sync.Mutex
	var start time.Time

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if total == 0 {
			return
		}
		if bar == nil {
			start = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(done)

		if done > 0 {
			rate := float64(done) / time.Since(start).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
