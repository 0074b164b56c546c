// Package lint inspects policy documents for capability grants that are
// broader than they need to be.
package lint

import (
	"fmt"
	"path"
	"strings"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
)

// Level grades a finding. Values match SARIF result levels.
type Level string

const (
	LevelNote    Level = "note"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Finding is a single lint result.
type Finding struct {
	RuleID     string          `json:"ruleId"`
	Level      Level           `json:"level"`
	Capability permission.Name `json:"capability"`
	Pattern    string          `json:"pattern,omitempty"`
	Message    string          `json:"message"`
}

// Rule describes a lint rule for report metadata.
type Rule struct {
	ID          string
	Description string
	Level       Level
}

// Rules returns every rule the analyzer can emit.
func Rules() []Rule {
	return []Rule{
		{ID: "blanket-allow", Description: "A capability kind is allowed without any qualifier, granting every resource of that kind.", Level: LevelWarning},
		{ID: "wildcard-pattern", Description: "An allow entry or grant rule uses the bare wildcard and matches everything.", Level: LevelWarning},
		{ID: "root-path", Description: "A path entry covers the filesystem root, which contains every file on the host.", Level: LevelError},
		{ID: "shell-run", Description: "A run entry names a shell or command launcher, which can execute arbitrary programs.", Level: LevelError},
		{ID: "credential-env", Description: "An env wildcard overlaps well-known credential variable families.", Level: LevelWarning},
		{ID: "portless-net", Description: "A net entry without a port matches every port on the host.", Level: LevelNote},
	}
}

// shellNames are run targets that defeat command-level gating.
var shellNames = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
	"dash": true,
	"ksh":  true,
	"fish": true,
	"env":  true,
}

// credentialPrefixes are env variable families that commonly hold
// secrets.
var credentialPrefixes = []string{
	"AWS_",
	"AZURE_",
	"GOOGLE_",
	"GCP_",
	"GITHUB_",
	"OPENAI_",
}

// Analyze inspects a policy document and reports findings in capability
// kind order. A nil document yields no findings.
func Analyze(doc *policy.Document) []Finding {
	if doc == nil {
		return nil
	}

	var findings []Finding
	for _, name := range permission.Names() {
		section, ok := doc.Section(name)
		if !ok {
			continue
		}
		findings = append(findings, analyzeSection(name, section)...)
	}
	return findings
}

func analyzeSection(name permission.Name, section policy.Section) []Finding {
	var findings []Finding

	if allowed, ok := section.Allow.Bool(); ok {
		if allowed && name != permission.NameHrtime {
			findings = append(findings, Finding{
				RuleID:     "blanket-allow",
				Level:      LevelWarning,
				Capability: name,
				Message:    fmt.Sprintf("%s is allowed for every resource, consider listing the ones the plugin needs", name),
			})
		}
		return findings
	}

	for _, entry := range section.Allow.List() {
		findings = append(findings, analyzeEntry(name, entry)...)
	}
	for _, rule := range section.Rules {
		if f, ok := analyzeRule(name, rule); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func analyzeEntry(name permission.Name, entry string) []Finding {
	if entry == "*" {
		return []Finding{{
			RuleID:     "wildcard-pattern",
			Level:      LevelWarning,
			Capability: name,
			Pattern:    entry,
			Message:    fmt.Sprintf("%s allow entry %q matches everything", name, entry),
		}}
	}

	var findings []Finding
	switch name {
	case permission.NameRead, permission.NameWrite, permission.NameFfi:
		if path.Clean(entry) == "/" {
			findings = append(findings, Finding{
				RuleID:     "root-path",
				Level:      LevelError,
				Capability: name,
				Pattern:    entry,
				Message:    fmt.Sprintf("%s allow entry %q covers the entire filesystem", name, entry),
			})
		}
	case permission.NameRun:
		if shellNames[path.Base(entry)] {
			findings = append(findings, Finding{
				RuleID:     "shell-run",
				Level:      LevelError,
				Capability: name,
				Pattern:    entry,
				Message:    fmt.Sprintf("run allow entry %q is a shell, any command can be executed through it", entry),
			})
		}
	case permission.NameEnv:
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			if family := credentialFamily(prefix); family != "" {
				findings = append(findings, Finding{
					RuleID:     "credential-env",
					Level:      LevelWarning,
					Capability: name,
					Pattern:    entry,
					Message:    fmt.Sprintf("env allow entry %q covers %s credential variables", entry, family),
				})
			}
		}
	case permission.NameNet:
		if !strings.Contains(entry, ":") && !strings.HasSuffix(entry, "*") {
			findings = append(findings, Finding{
				RuleID:     "portless-net",
				Level:      LevelNote,
				Capability: name,
				Pattern:    entry,
				Message:    fmt.Sprintf("net allow entry %q matches every port on that host, consider pinning one", entry),
			})
		}
	}
	return findings
}

func analyzeRule(name permission.Name, rule policy.Rule) (Finding, bool) {
	if rule.Pattern != "*" || permission.State(rule.State) != permission.StateGranted {
		return Finding{}, false
	}

	level := LevelWarning
	message := fmt.Sprintf("%s rule grants everything via pattern %q", name, rule.Pattern)
	if rule.When != "" {
		level = LevelNote
		message += fmt.Sprintf(", gated only by %q", rule.When)
	}
	return Finding{
		RuleID:     "wildcard-pattern",
		Level:      level,
		Capability: name,
		Pattern:    rule.Pattern,
		Message:    message,
	}, true
}

// credentialFamily returns the credential prefix a wildcard prefix
// overlaps, or empty when it names nothing sensitive.
func credentialFamily(prefix string) string {
	for _, family := range credentialPrefixes {
		if strings.HasPrefix(family, prefix) || strings.HasPrefix(prefix, family) {
			return strings.TrimSuffix(family, "_")
		}
	}
	return ""
}
