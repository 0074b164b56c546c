package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gatelet-dev/gatelet/internal/audit"
	"github.com/gatelet-dev/gatelet/internal/lint"
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
)

// StatusEntry is one row of a capability status listing.
type StatusEntry struct {
	Capability string           `json:"capability"`
	State      permission.State `json:"state"`
}

// TableFormatter renders listings as human-readable tables.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// FormatStatuses writes a capability status listing.
func (f *TableFormatter) FormatStatuses(entries []StatusEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No capabilities.")
		return nil
	}

	width := 0
	for _, e := range entries {
		if len(e.Capability) > width {
			width = len(e.Capability)
		}
	}

	fmt.Fprintln(f.writer, "Capabilities:")
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))

	counts := make(map[permission.State]int)
	for _, e := range entries {
		fmt.Fprintf(f.writer, "%s %-*s  %s\n", stateSymbol(e.State), width, e.Capability, e.State)
		counts[e.State]++
	}

	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	fmt.Fprintf(f.writer, "%d capabilities: %d granted, %d denied, %d prompt\n",
		len(entries), counts[permission.StateGranted], counts[permission.StateDenied], counts[permission.StatePrompt])
	return nil
}

// FormatGrants writes a persisted grants listing.
func (f *TableFormatter) FormatGrants(grants []policy.Grant) error {
	if len(grants) == 0 {
		fmt.Fprintln(f.writer, "No grants recorded.")
		return nil
	}

	width := 0
	keys := make([]string, len(grants))
	for i, g := range grants {
		key := permission.Key{Name: permission.Name(g.Name), Qualifier: g.Qualifier}
		keys[i] = key.String()
		if len(keys[i]) > width {
			width = len(keys[i])
		}
	}

	fmt.Fprintln(f.writer, "Persisted grants:")
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	for i, g := range grants {
		fmt.Fprintf(f.writer, "✓ %-*s  granted %s\n", width, keys[i], g.GrantedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	fmt.Fprintf(f.writer, "%d grants\n", len(grants))
	return nil
}

// FormatEvents writes an audit journal listing.
func (f *TableFormatter) FormatEvents(events []audit.Event) error {
	if len(events) == 0 {
		fmt.Fprintln(f.writer, "No audit events.")
		return nil
	}

	width := 0
	keys := make([]string, len(events))
	for i, e := range events {
		key := permission.Key{Name: e.Name, Qualifier: e.Qualifier}
		keys[i] = key.String()
		if len(keys[i]) > width {
			width = len(keys[i])
		}
	}

	fmt.Fprintln(f.writer, "Audit events:")
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	for i, e := range events {
		fmt.Fprintf(f.writer, "%s  %-7s  %-*s  %-7s  %s\n",
			e.Time.UTC().Format(time.RFC3339), e.Op, width, keys[i], e.State, e.Source)
	}
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	fmt.Fprintf(f.writer, "%d events\n", len(events))
	return nil
}

// FormatFindings writes a policy lint listing.
func (f *TableFormatter) FormatFindings(findings []lint.Finding) error {
	if len(findings) == 0 {
		fmt.Fprintln(f.writer, "No findings.")
		return nil
	}

	fmt.Fprintln(f.writer, "Findings:")
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))

	counts := make(map[lint.Level]int)
	for _, finding := range findings {
		fmt.Fprintf(f.writer, "%s %-7s  %-17s  %s\n",
			levelSymbol(finding.Level), strings.ToUpper(string(finding.Level)), finding.RuleID, finding.Message)
		counts[finding.Level]++
	}

	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	fmt.Fprintf(f.writer, "%d findings: %d errors, %d warnings, %d notes\n",
		len(findings), counts[lint.LevelError], counts[lint.LevelWarning], counts[lint.LevelNote])
	return nil
}

// stateSymbol returns a symbol for the given capability state.
func stateSymbol(state permission.State) string {
	switch state {
	case permission.StateGranted:
		return "✓"
	case permission.StateDenied:
		return "✗"
	default:
		return "?"
	}
}

// levelSymbol returns a symbol for the given finding level.
func levelSymbol(level lint.Level) string {
	switch level {
	case lint.LevelError:
		return "✗"
	case lint.LevelWarning:
		return "⚠"
	default:
		return "·"
	}
}
