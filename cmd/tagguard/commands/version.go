package commands

import (
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s)\n", version.AppName, version.Current, version.Commit)
	},
}
