// Package prompt provides interactive terminal prompting for
// capability requests.
package prompt

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/gatelet-dev/gatelet/internal/engine"
	"github.com/gatelet-dev/gatelet/internal/permission"
)

const (
	choiceAllowOnce   = "once"
	choiceAllowAlways = "always"
	choiceDeny        = "deny"
)

// Terminal prompts on the controlling terminal.
type Terminal struct{}

// NewTerminal creates a new terminal prompter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Interactive checks if we're running in an interactive terminal.
func (p *Terminal) Interactive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	// Character device means a terminal, not a pipe or file.
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// Prompt asks the user to decide the capability request.
func (p *Terminal) Prompt(ctx context.Context, d permission.Descriptor) (engine.Decision, error) {
	if err := ctx.Err(); err != nil {
		return engine.Decision{}, err
	}

	var choice string
	err := huh.NewSelect[string]().
		Title(fmt.Sprintf("A plugin wants to %s", Describe(d))).
		Options(
			huh.NewOption("Allow once", choiceAllowOnce),
			huh.NewOption("Allow always", choiceAllowAlways),
			huh.NewOption("Deny", choiceDeny),
		).
		Value(&choice).
		Run()
	if err != nil {
		return engine.Decision{}, fmt.Errorf("failed to read decision: %w", err)
	}

	switch choice {
	case choiceAllowOnce:
		return engine.Decision{Allow: true}, nil
	case choiceAllowAlways:
		return engine.Decision{Allow: true, Always: true}, nil
	default:
		return engine.Decision{}, nil
	}
}

// Describe returns a human-readable description of the capability a
// descriptor asks for.
func Describe(d permission.Descriptor) string {
	switch d.Name {
	case permission.NameRead:
		if d.Path == "" {
			return "read any file"
		}
		return fmt.Sprintf("read files under %s", d.Path)
	case permission.NameWrite:
		if d.Path == "" {
			return "write any file"
		}
		return fmt.Sprintf("write files under %s", d.Path)
	case permission.NameFfi:
		if d.Path == "" {
			return "load any native library"
		}
		return fmt.Sprintf("load the native library %s", d.Path)
	case permission.NameNet:
		if d.Host == "" {
			return "open network connections to any host"
		}
		return fmt.Sprintf("open network connections to %s", d.Host)
	case permission.NameRun:
		if d.Command == "" {
			return "run any command"
		}
		return fmt.Sprintf("run the command %s", d.Command)
	case permission.NameEnv:
		if d.Variable == "" {
			return "read any environment variable"
		}
		return fmt.Sprintf("read the environment variable %s", d.Variable)
	case permission.NameSys:
		if d.Kind == "" {
			return "read system information"
		}
		return fmt.Sprintf("read system information (%s)", d.Kind)
	case permission.NameHrtime:
		return "use high-resolution time"
	default:
		return d.Key().String()
	}
}
