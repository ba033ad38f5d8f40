package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olemoy/craigpy/internal/config"
	"github.com/olemoy/craigpy/internal/embedder"
	"github.com/olemoy/craigpy/internal/indexer"
	"github.com/olemoy/craigpy/internal/searcher"
	"github.com/olemoy/craigpy/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "craig",
	Short: "Local semantic code index",
	Long: `craig indexes codebases into a local SQLite database and answers
semantic queries over them, either on the command line or as an MCP
server for coding agents.

Ingest is incremental: a hash tree over the repository detects what
changed, and only changed files are re-chunked and re-embedded.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/craig/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadSettings reads configuration honoring the --config flag.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return settings, nil
}

// env bundles the components most commands need.
type env struct {
	settings *config.Settings
	store    storage.Storage
	embed    embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *log.Logger
}

// openEnv wires storage, embedder, indexer, and searcher from settings.
// Callers must Close when done.
func openEnv() (*env, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if err := settings.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}

	emb, err := embedder.New(settings.Embedding)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	logger := log.New(os.Stderr, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	return &env{
		settings: settings,
		store:    store,
		embed:    emb,
		indexer:  indexer.New(store, emb, settings, logger),
		searcher: searcher.New(store, emb),
		logger:   logger,
	}, nil
}

func (e *env) Close() {
	_ = e.embed.Close()
	_ = e.store.Close()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\ninterrupted, stopping...")
		cancel()
	}()
	return ctx, cancel
}
