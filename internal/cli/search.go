package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olemoy/craigpy/internal/searcher"
	"github.com/olemoy/craigpy/pkg/types"
)

var (
	searchRepo     string
	searchLimit    int
	searchLanguage string
	searchPrefix   string
	searchKind     string
	searchMinSim   float64
	searchContent  bool
	similarSnippet string
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed code",
	Long: `Search embeds the query and returns the closest indexed chunks.

Examples:
  craig search "retry with exponential backoff"
  craig search "http middleware" --repo myproject --limit 5
  craig search "parse config" --language go --content
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

// similarCmd represents the similar command
var similarCmd = &cobra.Command{
	Use:   "similar <name> [<file>:<line>]",
	Short: "Find code similar to a file location or a snippet",
	Long: `Similar finds the indexed chunk covering a file location and returns
the chunks nearest to its vector. With --snippet, the given text is
embedded directly instead of looking up a stored chunk.

Examples:
  craig similar myproject src/auth.py:42
  craig similar myproject --snippet 'def authenticate(user):'
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSimilar,
}

// symbolCmd represents the symbol command
var symbolCmd = &cobra.Command{
	Use:   "symbol <pattern>",
	Short: "Find symbol definitions by name or glob pattern",
	Long: `Symbol looks up named definitions captured during chunking.

Examples:
  craig symbol ParseConfig
  craig symbol 'Handle*' --repo myproject
`,
	Args: cobra.ExactArgs(1),
	RunE: runSymbol,
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, similarCmd, symbolCmd} {
		rootCmd.AddCommand(c)
		c.Flags().IntVarP(&searchLimit, "limit", "n", searcher.DefaultLimit, "maximum results")
	}
	searchCmd.Flags().StringVarP(&searchRepo, "repo", "r", "", "restrict to one repository")
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", "restrict to one language tag")
	searchCmd.Flags().StringVar(&searchPrefix, "prefix", "", "restrict to files under this path prefix")
	searchCmd.Flags().Float64Var(&searchMinSim, "min-similarity", 0, "drop results below this similarity")
	searchCmd.Flags().BoolVar(&searchContent, "content", false, "print chunk contents")

	similarCmd.Flags().StringVar(&similarSnippet, "snippet", "", "rank against this text instead of a file location")

	symbolCmd.Flags().StringVarP(&searchRepo, "repo", "r", "", "restrict to one repository")
	symbolCmd.Flags().StringVar(&searchLanguage, "language", "", "restrict to one language tag")
	symbolCmd.Flags().StringVar(&searchKind, "kind", "", "restrict to one symbol kind (function, class, ...)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	query := strings.Join(args, " ")
	results, err := e.searcher.SemanticSearch(ctx, query, searcher.Options{
		Repository:    searchRepo,
		Limit:         searchLimit,
		Language:      searchLanguage,
		PathPrefix:    searchPrefix,
		MinSimilarity: searchMinSim,
	})
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	opts := searcher.Options{
		Repository: args[0],
		Limit:      searchLimit,
	}

	var results []types.SearchResult
	switch {
	case similarSnippet != "":
		results, err = e.searcher.SimilarToSnippet(ctx, similarSnippet, opts)
	case len(args) == 2:
		var file string
		var line int
		file, line, err = splitFileLine(args[1])
		if err != nil {
			return err
		}
		results, err = e.searcher.FindSimilar(ctx, args[0], file, line, opts)
	default:
		return fmt.Errorf("either <file>:<line> or --snippet is required")
	}
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func runSymbol(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.searcher.FindSymbol(cmd.Context(), args[0], searcher.Options{
		Repository: searchRepo,
		Limit:      searchLimit,
		Language:   searchLanguage,
		SymbolKind: searchKind,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		kind := r.SymbolKind
		if kind == "" {
			kind = "symbol"
		}
		fmt.Printf("%s %s  %s/%s:%d\n", kind, r.SymbolName, r.Repository, r.FilePath, r.StartLine)
	}
	return nil
}

func printResults(results []types.SearchResult) {
	if len(results) == 0 {
		fmt.Println("no matches")
		return
	}
	for i, r := range results {
		header := fmt.Sprintf("%d. %s/%s:%d-%d (%.3f)", i+1, r.Repository, r.FilePath, r.StartLine, r.EndLine, r.Similarity)
		if r.SymbolName != "" {
			header += fmt.Sprintf("  %s %s", r.SymbolKind, r.SymbolName)
		}
		fmt.Println(header)
		if searchContent {
			for _, line := range strings.Split(strings.TrimRight(r.Content, "\n"), "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}
}

func splitFileLine(arg string) (string, int, error) {
	idx := strings.LastIndex(arg, ":")
	if idx <= 0 || idx == len(arg)-1 {
		return "", 0, fmt.Errorf("expected <file>:<line>, got %q", arg)
	}
	line, err := strconv.Atoi(arg[idx+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("invalid line number in %q", arg)
	}
	return arg[:idx], line, nil
}
