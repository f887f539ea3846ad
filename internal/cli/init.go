package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"supplyrag/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example supplyrag.yaml and the data directories",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	target := filepath.Join(GetRootDir(), "supplyrag.yaml")
	if _, err := os.Stat(target); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", target)
	}

	example := config.ExampleConfig()
	for _, dir := range []string{example.Paths.RawDir, example.Paths.ParsedDir, filepath.Dir(example.Paths.ChunksFile), example.Paths.IndexDir} {
		if err := os.MkdirAll(path(dir), 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := example.Save(target); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", target)
	fmt.Printf("Put .txt or .md sources in %s, then run: supplyrag parse && supplyrag chunk && supplyrag build\n", path(example.Paths.RawDir))
	return nil
}
