package main

import (
	"github.com/spf13/cobra"
)

// queryCmd reports capability states without escalating anything.
var queryCmd = &cobra.Command{
	Use:   "query <kind[:qualifier]>...",
	Short: "Report the current state of capabilities",
	Long: `Query the policy for one or more capabilities without prompting or
recording anything. Capabilities are named as kind or kind:qualifier.

Examples:
  gatelet query read:/etc/hosts
  gatelet query net:example.com:443 env:HOME hrtime`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descs, err := parseDescriptors(args)
		if err != nil {
			return err
		}

		f, err := buildFacade(facadeOptions{source: "cli"})
		if err != nil {
			return err
		}
		defer f.Close()

		statuses, err := f.perms.QueryAll(cmd.Context(), descs)
		if err != nil {
			return err
		}

		return printStatuses(statuses)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
