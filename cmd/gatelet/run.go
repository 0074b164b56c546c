package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/sandbox"
)

var (
	runManifest    string
	runTrust       bool
	runMemoryLimit int
)

// runCmd executes a WASM plugin under the capability harness.
var runCmd = &cobra.Command{
	Use:   "run <plugin.wasm>",
	Short: "Execute a WASM plugin under the capability harness",
	Long: `Execute a plugin in the WASM sandbox. The plugin reaches host
resources only through gated host functions, each checked against the
policy.

A manifest next to the module (plugin.wasm -> plugin.yaml) declares the
capabilities to preflight and the configuration passed to the plugin.
Capabilities the preflight finds undecided are requested up front, so
plugins do not stall on prompts mid-run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlugin(cmd, args[0])
	},
}

func runPlugin(cmd *cobra.Command, wasmPath string) error {
	ctx := cmd.Context()

	manifest, err := loadRunManifest(wasmPath)
	if err != nil {
		return err
	}

	f, err := buildFacade(facadeOptions{
		interactive: true,
		trust:       runTrust,
		source:      manifest.Name,
	})
	if err != nil {
		return err
	}
	defer f.Close()

	runtime, err := sandbox.NewRuntimeWithMemoryLimit(ctx, f.perms, f.scrubber, runMemoryLimit)
	if err != nil {
		return err
	}
	defer func() {
		_ = runtime.Close(ctx)
	}()

	//nolint:gosec // G304: user-controlled module path is intentional
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("failed to read plugin module: %w", err)
	}

	plugin, err := runtime.LoadPlugin(ctx, manifest.Name, wasmBytes)
	if err != nil {
		return err
	}

	if err := preflight(cmd, runtime, f.perms, manifest); err != nil {
		return err
	}

	slog.Info("running plugin", "plugin", manifest.Name)
	report, err := plugin.Run(ctx, manifest.Config)
	if err != nil {
		return err
	}

	if report.Message != "" {
		fmt.Println(report.Message)
	}
	if !report.OK {
		return fmt.Errorf("plugin %s reported failure", manifest.Name)
	}
	return nil
}

// preflight resolves the manifest's declared capabilities before the
// plugin starts, requesting any the policy leaves undecided. A denial
// does not stop the run: the plugin may never exercise the capability,
// and the gate refuses it if it does.
func preflight(cmd *cobra.Command, runtime *sandbox.Runtime, perms *permission.Permissions, manifest *sandbox.Manifest) error {
	missing, err := runtime.Preflight(cmd.Context(), manifest)
	if err != nil {
		return err
	}

	for _, key := range missing {
		d := permission.NewDescriptor(key.Name, key.Qualifier)
		status, err := perms.RequestSync(cmd.Context(), d)
		if err != nil {
			return fmt.Errorf("failed to request %s: %w", key, err)
		}
		if status.State() != permission.StateGranted {
			slog.Warn("capability not granted, plugin calls needing it are refused",
				"capability", key.String(),
				"state", string(status.State()),
			)
		}
	}

	return nil
}

// loadRunManifest reads the plugin manifest, defaulting to the YAML
// file next to the module. A plugin without a manifest runs with no
// preflight and no configuration.
func loadRunManifest(wasmPath string) (*sandbox.Manifest, error) {
	path := runManifest
	if path == "" {
		path = strings.TrimSuffix(wasmPath, filepath.Ext(wasmPath)) + ".yaml"
		if _, err := os.Stat(path); os.IsNotExist(err) {
			name := strings.TrimSuffix(filepath.Base(wasmPath), filepath.Ext(wasmPath))
			slog.Debug("no manifest, running without preflight", "plugin", name)
			return &sandbox.Manifest{Name: name}, nil
		}
	}
	return sandbox.LoadManifest(path)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runManifest, "manifest", "", "plugin manifest path (default: <plugin>.yaml)")
	runCmd.Flags().BoolVar(&runTrust, "trust", false, "grant every capability without prompting (use with caution)")
	runCmd.Flags().IntVar(&runMemoryLimit, "memory-limit", 0, "guest memory limit in MB (0 for default, -1 to disable)")
}
