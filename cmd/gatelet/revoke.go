package main

import (
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/spf13/cobra"
)

// revokeCmd withdraws capabilities for the current session.
var revokeCmd = &cobra.Command{
	Use:   "revoke <kind[:qualifier]>...",
	Short: "Withdraw capabilities for this session",
	Long: `Withdraw one or more capabilities. Revocation masks grants made for
exactly the named qualifier; broader grants keep covering their
descendants. Persisted "always allow" grants survive revocation —
remove those with 'gatelet grants revoke'.`,
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

		statuses := make([]*permission.Status, len(descs))
		for i, d := range descs {
			status, err := f.perms.RevokeSync(cmd.Context(), d)
			if err != nil {
				return err
			}
			statuses[i] = status
		}

		return printStatuses(statuses)
	},
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}
