package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olemoy/craigpy/internal/storage"
)

var (
	// Version information - typically set via ldflags at build time
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("craig %s\n", Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build date: %s\n", BuildDate)
		fmt.Printf("SQLite driver: %s (%s)\n", storage.DriverName, storage.BuildMode)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
