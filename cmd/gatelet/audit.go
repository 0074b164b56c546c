package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatelet-dev/gatelet/internal/audit"
	"github.com/gatelet-dev/gatelet/internal/output"
	"github.com/gatelet-dev/gatelet/internal/permission"
)

var (
	auditCapability string
	auditOp         string
	auditSince      time.Duration
	auditLimit      int
)

// auditCmd lists journaled capability decisions.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List journaled capability decisions",
	Long: `List the capability decisions recorded in the audit journal, newest
first.

Examples:
  gatelet audit --limit 20
  gatelet audit --capability read --since 24h
  gatelet audit --op revoke --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := auditFilter()
		if err != nil {
			return err
		}

		journal, err := audit.Open(journalPath())
		if err != nil {
			return err
		}
		defer func() {
			_ = journal.Close()
		}()

		events, err := journal.List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if jsonOut {
			return output.NewJSONFormatter(os.Stdout, true).Format(events)
		}
		return output.NewTableFormatter(os.Stdout).FormatEvents(events)
	},
}

// auditFilter validates the filtering flags.
func auditFilter() (audit.Filter, error) {
	filter := audit.Filter{Limit: auditLimit}

	if auditCapability != "" {
		name := permission.Name(auditCapability)
		if !name.Valid() {
			return audit.Filter{}, fmt.Errorf("unknown capability kind %q", auditCapability)
		}
		filter.Name = name
	}

	switch op := audit.Op(auditOp); op {
	case "", audit.OpQuery, audit.OpRequest, audit.OpRevoke:
		filter.Op = op
	default:
		return audit.Filter{}, fmt.Errorf("unknown operation %q (valid: query, request, revoke)", auditOp)
	}

	if auditSince > 0 {
		filter.Since = time.Now().Add(-auditSince)
	}

	return filter, nil
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringVar(&auditCapability, "capability", "", "only events for this capability kind")
	auditCmd.Flags().StringVar(&auditOp, "op", "", "only events for this operation: query, request, revoke")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "only events newer than this age (e.g. 24h)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "maximum number of events (0 for all)")
}
