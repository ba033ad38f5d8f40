package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/olemoy/craigpy/internal/indexer"
	"github.com/olemoy/craigpy/pkg/types"
)

var (
	ingestForce   bool
	ingestWorkers int
	ingestExclude []string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <name> [path]",
	Short: "Index a repository incrementally",
	Long: `Ingest walks a repository, chunks files that changed since the last
run, embeds the new chunks, and stores everything in the local index.

The first ingest of a name registers the repository at the given path.
Later runs may omit the path. Unchanged files, detected by the stored
hash tree, are not re-processed.

Examples:
  # Register and index a repository
  craig ingest myproject ~/src/myproject

  # Re-index only what changed
  craig ingest myproject

  # Re-chunk and re-embed everything
  craig ingest myproject --force
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIngest,
}

// ingestFileCmd represents the ingest-file command
var ingestFileCmd = &cobra.Command{
	Use:   "ingest-file <name> <file>",
	Short: "Index a single file, optionally bypassing size limits",
	Long: `Ingest-file indexes one file inside a registered repository. With
--force it indexes files the size threshold would normally skip.

Examples:
  craig ingest-file myproject src/generated/schema.py --force
`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestFile,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-chunk and re-embed all files")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent file workers (default: number of CPUs)")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "extra ignore patterns (gitignore syntax)")

	rootCmd.AddCommand(ingestFileCmd)
	ingestFileCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "index even when the size threshold would skip the file")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	name := args[0]
	rootPath := ""
	if len(args) > 1 {
		rootPath = args[1]
	}

	summary, err := e.indexer.Ingest(ctx, name, rootPath, &indexer.Options{
		Force:   ingestForce,
		Workers: ingestWorkers,
		Exclude: ingestExclude,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	path := args[1]
	if abs, err := filepath.Abs(path); err == nil && filepath.IsAbs(path) {
		path = abs
	}

	summary, err := e.indexer.IngestFile(ctx, args[0], path, ingestForce)
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

func printSummary(s *types.IngestSummary) {
	fmt.Printf("%s: %d added, %d modified, %d deleted, %d unchanged\n",
		s.Repository, s.Added, s.Modified, s.Deleted, s.Unchanged)
	fmt.Printf("chunks embedded: %d, vectors reused: %d (%.2fs)\n",
		s.ChunksCreated, s.VectorsReused, s.Duration.Seconds())

	if len(s.Skipped) > 0 {
		fmt.Printf("skipped %d files\n", len(s.Skipped))
		if verbose {
			for _, sk := range s.Skipped {
				fmt.Printf("  %s (%s)\n", sk.Path, sk.Reason)
			}
		}
	}
	if len(s.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "failed %d files:\n", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Path, f.Err)
		}
	}
}
