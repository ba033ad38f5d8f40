package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// reposCmd represents the repos command
var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List indexed repositories",
	Args:  cobra.NoArgs,
	RunE:  runRepos,
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show what an ingest would change, without changing anything",
	Long: `Status diffs the working tree against the index. With no name it
reports every indexed repository.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

// purgeCmd represents the purge command
var purgeCmd = &cobra.Command{
	Use:   "purge <name>",
	Short: "Remove a repository and all its indexed data",
	Args:  cobra.ExactArgs(1),
	RunE:  runPurge,
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats [name]",
	Short: "Show index statistics for one repository or the whole index",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(statsCmd)
}

func runRepos(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	repos, err := e.searcher.ListRepositories(cmd.Context())
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		fmt.Println("no repositories indexed")
		return nil
	}
	for _, r := range repos {
		when := "never ingested"
		if !r.IngestedAt.IsZero() {
			when = "ingested " + r.IngestedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-20s %s (%s)\n", r.Name, r.RootPath, when)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	names := args
	if len(names) == 0 {
		repos, err := e.searcher.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Println("no repositories indexed")
			return nil
		}
		for _, r := range repos {
			names = append(names, r.Name)
		}
	}

	for _, name := range names {
		cs, err := e.indexer.Status(ctx, name)
		if err != nil {
			return err
		}

		if !cs.HasChanges() {
			fmt.Printf("%s is up to date (%d files)\n", name, len(cs.Unchanged))
			continue
		}
		for _, p := range cs.Added {
			fmt.Printf("A %s\n", p)
		}
		for _, p := range cs.Modified {
			fmt.Printf("M %s\n", p)
		}
		for _, p := range cs.Deleted {
			fmt.Printf("D %s\n", p)
		}
		fmt.Printf("%s: %d added, %d modified, %d deleted, %d unchanged\n",
			name, len(cs.Added), len(cs.Modified), len(cs.Deleted), len(cs.Unchanged))
	}
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.indexer.Purge(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("purged %s\n", args[0])
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	stats, err := e.searcher.Stats(cmd.Context(), name)
	if err != nil {
		return err
	}

	if stats.Repository != "" {
		fmt.Printf("repository:    %s\n", stats.Repository)
	}
	fmt.Printf("files:         %d (+%d skipped)\n", stats.Files, stats.SkippedFiles)
	fmt.Printf("chunk refs:    %d\n", stats.ChunkRefs)
	fmt.Printf("unique chunks: %d\n", stats.UniqueChunks)
	fmt.Printf("embeddings:    %d\n", stats.Embeddings)
	fmt.Printf("total tokens:  %d\n", stats.TotalTokens)
	if len(stats.Languages) > 0 {
		langs := make([]string, 0, len(stats.Languages))
		for lang := range stats.Languages {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		fmt.Println("languages:")
		for _, lang := range langs {
			fmt.Printf("  %-12s %d\n", lang, stats.Languages[lang])
		}
	}
	if !stats.IngestedAt.IsZero() {
		fmt.Printf("ingested at:   %s\n", stats.IngestedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
