package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [repo-path]",
	Short: "Show the effective configuration",
	Long: `Config prints the resolved settings: global defaults merged with any
per-repository overrides when a repository path is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	fmt.Printf("data_dir: %s\n", settings.DataDir)
	fmt.Printf("database: %s\n", settings.DatabasePath())
	fmt.Printf("embedding.provider: %s\n", settings.Embedding.Provider)

	scope := "defaults"
	cfg := settings.RepoConfigFor("")
	if len(args) > 0 {
		scope = args[0]
		cfg = settings.RepoConfigFor(args[0])
	}
	fmt.Printf("%s:\n", scope)
	fmt.Printf("  token_target: %d\n", cfg.TokenTarget)
	fmt.Printf("  overlap_tokens: %d\n", cfg.OverlapTokens)
	fmt.Printf("  chunk_threshold: %d\n", cfg.ChunkThreshold)
	fmt.Printf("  max_file_size_bytes: %d\n", cfg.MaxFileSizeBytes)
	return nil
}
