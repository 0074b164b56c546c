package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/gatelet-dev/gatelet/internal/templates"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter capability policy",
	Long: `Generate a commented starter policy so new setups begin from a working
document instead of an empty file. The starter allows a few harmless
capabilities and leaves everything else to the unlisted default.`,
	Example: `  gatelet init
  gatelet init --unlisted denied --output ./policy.yaml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("output", "", "output file path (default is $HOME/.gatelet/policy.yaml)")
	initCmd.Flags().String("unlisted", "", "fallback state for unmatched capabilities (prompt, denied)")
	initCmd.Flags().String("requires", "", "minimum gatelet version to pin, e.g. \">= 0.1.0\"")
	initCmd.Flags().Bool("force", false, "overwrite an existing policy file")
	initCmd.Flags().Bool("no-interactive", false, "disable interactive prompts")

	rootCmd.AddCommand(initCmd)
}

type initOptions struct {
	OutputPath    string
	Unlisted      string
	Requires      string
	Force         bool
	NoInteractive bool
}

func runInit(cmd *cobra.Command, _ []string) error {
	opts := initOptions{}

	opts.OutputPath, _ = cmd.Flags().GetString("output")
	opts.Unlisted, _ = cmd.Flags().GetString("unlisted")
	opts.Requires, _ = cmd.Flags().GetString("requires")
	opts.Force, _ = cmd.Flags().GetBool("force")
	opts.NoInteractive, _ = cmd.Flags().GetBool("no-interactive")

	if opts.OutputPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		opts.OutputPath = filepath.Join(home, ".gatelet", "policy.yaml")
	}

	switch opts.Unlisted {
	case "", "prompt", "denied":
	default:
		return fmt.Errorf("unlisted must be prompt or denied, got %q", opts.Unlisted)
	}

	if !opts.NoInteractive && opts.Unlisted == "" {
		err := huh.NewSelect[string]().
			Title("What should happen to capabilities the policy does not mention?").
			Options(
				huh.NewOption("Prompt me each time", "prompt"),
				huh.NewOption("Deny them outright", "denied"),
			).
			Value(&opts.Unlisted).
			Run()
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(opts.OutputPath); err == nil && !opts.Force {
		return fmt.Errorf("%s already exists, pass --force to overwrite", opts.OutputPath)
	}

	content, err := templates.StarterPolicy(templates.StarterData{
		Unlisted: opts.Unlisted,
		Requires: opts.Requires,
	})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o750); err != nil {
		return fmt.Errorf("failed to create policy directory: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}

	fmt.Printf("Wrote starter policy to %s\n", opts.OutputPath)
	return nil
}
