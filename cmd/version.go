package cmd

import (
	"fmt"

	"netpilot/internal/pkg/version"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and git info",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetGitInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "Tag: %s\nCommit: %s\nDirty: %v\nGo: %s\n", info.Tag, info.Commit, info.Dirty, info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
