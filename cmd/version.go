package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped by the build; "devel" otherwise.
var Version = "devel"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pysh version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pysh %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
