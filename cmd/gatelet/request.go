package main

import (
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/spf13/cobra"
)

// requestCmd escalates capabilities, prompting for each undecided one.
var requestCmd = &cobra.Command{
	Use:   "request <kind[:qualifier]>...",
	Short: "Request capabilities, prompting for undecided ones",
	Long: `Ask the policy to grant one or more capabilities. Capabilities the
policy leaves undecided are put to you on the terminal; answering
"allow always" persists the grant for future runs.

Examples:
  gatelet request read:/var/log run:git
  gatelet request env:AWS_REGION`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descs, err := parseDescriptors(args)
		if err != nil {
			return err
		}

		f, err := buildFacade(facadeOptions{interactive: true, source: "cli"})
		if err != nil {
			return err
		}
		defer f.Close()

		// Prompting is a conversation, so requests run one at a time.
		statuses := make([]*permission.Status, len(descs))
		for i, d := range descs {
			status, err := f.perms.RequestSync(cmd.Context(), d)
			if err != nil {
				return err
			}
			statuses[i] = status
		}

		return printStatuses(statuses)
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
}
