package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatelet-dev/gatelet/internal/output"
	"github.com/gatelet-dev/gatelet/internal/policy"
)

// grantsCmd groups operations on persisted "always allow" grants.
var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Manage persisted capability grants",
}

var grantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted grants",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := grantsStore()
		if err != nil {
			return err
		}

		grants, err := store.Load()
		if err != nil {
			return err
		}

		if jsonOut {
			return output.NewJSONFormatter(os.Stdout, true).Format(grants)
		}
		return output.NewTableFormatter(os.Stdout).FormatGrants(grants)
	},
}

var grantsRevokeCmd = &cobra.Command{
	Use:   "revoke <kind[:qualifier]>...",
	Short: "Remove persisted grants",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		descs, err := parseDescriptors(args)
		if err != nil {
			return err
		}

		store, err := grantsStore()
		if err != nil {
			return err
		}

		for _, d := range descs {
			removed, err := store.Remove(string(d.Name), d.Qualifier())
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("no grant recorded for %s\n", d.Key())
				continue
			}
			fmt.Printf("removed grant for %s\n", d.Key())
		}
		return nil
	},
}

func grantsStore() (*policy.GrantsFile, error) {
	path, err := policy.DefaultGrantsPath()
	if err != nil {
		return nil, err
	}
	return policy.NewGrantsFile(path), nil
}

func init() {
	rootCmd.AddCommand(grantsCmd)
	grantsCmd.AddCommand(grantsListCmd)
	grantsCmd.AddCommand(grantsRevokeCmd)
}
