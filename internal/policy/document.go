// Package policy provides capability policy documents for Gatelet.
// It handles YAML parsing, allow-list normalization, and document
// validation.
package policy

import (
	"fmt"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/goccy/go-yaml"
)

// Document represents a complete capability policy.
// Policies declare per-kind allow and deny lists plus rule-based
// decisions evaluated at query time.
type Document struct {
	Version      string             `yaml:"version,omitempty"`
	Requires     string             `yaml:"requires,omitempty"`
	Defaults     *Defaults          `yaml:"defaults,omitempty"`
	Capabilities map[string]Section `yaml:"capabilities,omitempty"`
}

// Defaults defines fallback behavior applied when no allow, deny or
// rule entry matches a capability.
type Defaults struct {
	Unlisted string `yaml:"unlisted,omitempty"`
}

// Section configures one capability kind.
type Section struct {
	Allow AllowValue `yaml:"allow,omitempty"`
	Deny  []string   `yaml:"deny,omitempty"`
	Rules []Rule     `yaml:"rules,omitempty"`
}

// Rule decides the state of capabilities matching a pattern. When is
// an optional expression evaluated against the capability; the rule
// applies only when it returns true.
type Rule struct {
	Pattern string `yaml:"pattern"`
	State   string `yaml:"state"`
	When    string `yaml:"when,omitempty"`
}

// RuleEnv is the expression environment a rule's when clause is
// compiled and evaluated against.
type RuleEnv struct {
	Name      string `expr:"name"`
	Qualifier string `expr:"qualifier"`
}

// AllowValue is a boolean-or-list YAML value. `allow: true` grants the
// whole kind, `allow: false` denies it outright, and a list grants the
// named qualifiers. The zero value means the key was absent.
type AllowValue struct {
	set  bool
	all  bool
	list []string
}

// AllowAll returns a blanket-allow value.
func AllowAll() AllowValue { return AllowValue{set: true, all: true} }

// DenyAll returns a blanket-deny value.
func DenyAll() AllowValue { return AllowValue{set: true} }

// AllowList returns a list value granting the given qualifiers.
func AllowList(entries ...string) AllowValue {
	return AllowValue{set: true, list: append([]string{}, entries...)}
}

// IsZero reports whether the key was absent from the document.
func (v AllowValue) IsZero() bool { return !v.set }

// Bool returns the blanket value. ok is false when the value is absent
// or a list.
func (v AllowValue) Bool() (value, ok bool) {
	if !v.set || v.list != nil {
		return false, false
	}
	return v.all, true
}

// List returns the list entries, nil for absent or blanket values.
func (v AllowValue) List() []string { return v.list }

// UnmarshalYAML decodes either a boolean or a sequence of strings.
func (v *AllowValue) UnmarshalYAML(data []byte) error {
	var b bool
	if err := yaml.Unmarshal(data, &b); err == nil {
		*v = AllowValue{set: true, all: b}
		return nil
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		*v = AllowValue{set: true, list: list}
		return nil
	}

	return fmt.Errorf("allow must be a boolean or a list of strings")
}

// MarshalYAML encodes the value in the same shape it was declared.
func (v AllowValue) MarshalYAML() (interface{}, error) {
	if !v.set {
		return nil, nil
	}
	if v.list != nil {
		return v.list, nil
	}
	return v.all, nil
}

// Section returns the configuration for a capability kind.
func (d *Document) Section(name permission.Name) (Section, bool) {
	if d == nil || d.Capabilities == nil {
		return Section{}, false
	}
	s, ok := d.Capabilities[string(name)]
	return s, ok
}

// UnlistedState returns the state applied when nothing in the document
// matches a capability. The default is prompt.
func (d *Document) UnlistedState() permission.State {
	if d == nil || d.Defaults == nil || d.Defaults.Unlisted == "" {
		return permission.StatePrompt
	}
	if d.Defaults.Unlisted == string(permission.StateDenied) {
		return permission.StateDenied
	}
	return permission.StatePrompt
}

// SectionCount returns the number of configured capability kinds.
func (d *Document) SectionCount() int {
	if d == nil {
		return 0
	}
	return len(d.Capabilities)
}
