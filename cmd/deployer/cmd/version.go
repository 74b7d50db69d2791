package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const binaryName = "deployer"

// Set with -ldflags at build time.
var (
	Version     string
	GoVersion   string
	GitRevision string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the current version of the deployer",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s:\n", binaryName)
		fmt.Fprintf(out, "  - Version: %s\n", Version)
		fmt.Fprintf(out, "  - Git Revision: %s\n", GitRevision)
		fmt.Fprintf(out, "  - Go Version: %s\n", GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
