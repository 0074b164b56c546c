package main

import (
	"fmt"

	"github.com/gatelet-dev/gatelet/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd implements the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of gatelet",
	Run: func(_ *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Printf("gatelet version %s\n", info.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
