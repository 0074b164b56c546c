package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/gatelet-dev/gatelet/internal/audit"
	"github.com/gatelet-dev/gatelet/internal/engine"
	"github.com/gatelet-dev/gatelet/internal/output"
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
	"github.com/gatelet-dev/gatelet/internal/prompt"
	"github.com/gatelet-dev/gatelet/internal/redaction"
)

// parseDescriptor converts a capability argument of the form
// "kind" or "kind:qualifier" into a descriptor. The qualifier may
// itself contain colons (net hosts carry ports), so only the first
// colon splits.
func parseDescriptor(arg string) (permission.Descriptor, error) {
	kind, qualifier, _ := strings.Cut(arg, ":")

	d := permission.NewDescriptor(permission.Name(kind), qualifier)
	if err := d.Validate(); err != nil {
		return permission.Descriptor{}, err
	}
	return d, nil
}

// parseDescriptors converts every capability argument, failing on the
// first invalid one.
func parseDescriptors(args []string) ([]permission.Descriptor, error) {
	descs := make([]permission.Descriptor, len(args))
	for i, arg := range args {
		d, err := parseDescriptor(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		descs[i] = d
	}
	return descs, nil
}

// facadeOptions selects how the permission stack is assembled.
type facadeOptions struct {
	// interactive attaches a terminal prompter so requests can ask
	// the user.
	interactive bool
	// trust grants every capability outright, skipping the policy.
	trust bool
	// source tags journal entries with their origin.
	source string
}

// facade bundles the permission stack a command operates through.
type facade struct {
	perms    *permission.Permissions
	grants   *policy.GrantsFile
	journal  *audit.Journal
	scrubber *redaction.Scrubber
}

// Close releases the journal. Safe on a partially built facade.
func (f *facade) Close() {
	if f.journal != nil {
		_ = f.journal.Close()
	}
}

// buildFacade assembles the decision engine, grants store, audit
// journal and permission facade a command needs. Journal and scrubber
// failures degrade with a warning instead of blocking the command.
func buildFacade(opts facadeOptions) (*facade, error) {
	f := &facade{}

	grantsPath, err := policy.DefaultGrantsPath()
	if err != nil {
		return nil, err
	}
	f.grants = policy.NewGrantsFile(grantsPath)

	eng, err := buildEngine(opts, f.grants)
	if err != nil {
		return nil, err
	}

	f.scrubber, err = redaction.New(redaction.Config{
		Patterns: viper.GetStringSlice("redaction.patterns"),
		HashMode: viper.GetBool("redaction.hash_mode"),
		Salt:     viper.GetString("redaction.salt"),
	})
	if err != nil {
		slog.Warn("failed to build scrubber, journal entries are stored verbatim", "error", err)
	}

	decided := eng
	if journal, err := audit.Open(journalPath()); err != nil {
		slog.Warn("failed to open audit journal, decisions are not recorded", "error", err)
	} else {
		f.journal = journal
		decided = audit.NewEngine(eng, journal, f.scrubber, opts.source)
	}

	f.perms = permission.New(decided)
	return f, nil
}

// buildEngine compiles the policy document into a decision engine.
func buildEngine(opts facadeOptions, grants *policy.GrantsFile) (permission.Engine, error) {
	if opts.trust {
		slog.Warn("capability gating disabled, every capability is granted")
		return engine.NewTrusting(), nil
	}

	doc, err := loadPolicy()
	if err != nil {
		return nil, err
	}

	persisted, err := grants.Load()
	if err != nil {
		return nil, err
	}

	var prompter engine.Prompter
	if opts.interactive {
		prompter = prompt.NewTerminal()
	}

	return engine.NewWithPrompter(doc, persisted, prompter, grants)
}

// loadPolicy reads the policy document named by the --policy flag, the
// GATELET_POLICY environment, or the default location. A missing
// default file means an empty policy: everything prompts.
func loadPolicy() (*policy.Document, error) {
	path := policyFile
	if path == "" {
		path = viper.GetString("policy")
	}
	if path != "" {
		return policy.Load(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	path = filepath.Join(home, ".gatelet", "policy.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Debug("no policy file, every capability prompts", "path", path)
		return &policy.Document{}, nil
	}
	return policy.Load(path)
}

// journalPath returns the audit journal location, honoring the
// audit.path config key.
func journalPath() string {
	if path := viper.GetString("audit.path"); path != "" {
		return path
	}
	path, err := audit.DefaultJournalPath()
	if err != nil {
		return "audit.db"
	}
	return path
}

// statusEntries converts live statuses into output rows.
func statusEntries(statuses []*permission.Status) []output.StatusEntry {
	entries := make([]output.StatusEntry, len(statuses))
	for i, status := range statuses {
		entries[i] = output.StatusEntry{
			Capability: status.Key().String(),
			State:      status.State(),
		}
	}
	return entries
}

// printStatuses renders a status listing as a table or JSON.
func printStatuses(statuses []*permission.Status) error {
	entries := statusEntries(statuses)
	if jsonOut {
		return output.NewJSONFormatter(os.Stdout, true).Format(entries)
	}
	return output.NewTableFormatter(os.Stdout).FormatStatuses(entries)
}
