package cli

import (
	"github.com/spf13/cobra"

	"github.com/olemoy/craigpy/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the read-only query tools over MCP stdio",
	Long: `Mcp starts a Model Context Protocol server on stdin/stdout so coding
agents can query the index. All tools are read-only; run ingest
separately to update the index. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(settings)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}
