package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatelet-dev/gatelet/internal/lint"
	"github.com/gatelet-dev/gatelet/internal/output"
	"github.com/gatelet-dev/gatelet/internal/policy"
)

var (
	lintFormat  string
	lintOutFile string
)

// lintCmd checks a policy document for over-broad grants.
var lintCmd = &cobra.Command{
	Use:   "lint <policy.yaml>",
	Short: "Check a policy for over-broad grants",
	Long: `Load a policy document and report grants that are broader than they
need to be: blanket allows, wildcard patterns, root paths, shells in
run lists, credential-family env wildcards.

The command fails when any error-level finding is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runLint(args[0])
	},
}

func runLint(path string) error {
	doc, err := policy.Load(path)
	if err != nil {
		return err
	}

	findings := lint.Analyze(doc)

	writer := os.Stdout
	if lintOutFile != "" {
		//nolint:gosec // G304: user-controlled output file path is intentional
		file, err := os.Create(lintOutFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			_ = file.Close()
		}()
		writer = file
	}

	switch lintFormat {
	case "table":
		if err := output.NewTableFormatter(writer).FormatFindings(findings); err != nil {
			return err
		}
	case "json":
		if err := output.NewJSONFormatter(writer, true).Format(findings); err != nil {
			return err
		}
	case "sarif":
		if err := lint.NewSARIFFormatter(writer, path).Format(findings); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format: %s (supported: table, json, sarif)", lintFormat)
	}

	for _, finding := range findings {
		if finding.Level == lint.LevelError {
			return fmt.Errorf("policy has error-level findings")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVar(&lintFormat, "format", "table", "Output format: table, json, sarif")
	lintCmd.Flags().StringVarP(&lintOutFile, "output", "o", "", "Output file path (default: stdout)")
}
