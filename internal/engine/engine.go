// Package engine decides capability states from a policy document, an
// optional interactive prompter and the persisted grant store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/policy"
)

// ErrNotInteractive is returned by Request when escalation needs a
// user decision and no prompter can ask for one.
var ErrNotInteractive = errors.New("capability request requires an interactive terminal")

// Decision is the outcome of prompting the user for a capability.
type Decision struct {
	Allow  bool
	Always bool
}

// Prompter asks the user to decide a capability request.
type Prompter interface {
	Interactive() bool
	Prompt(ctx context.Context, d permission.Descriptor) (Decision, error)
}

// GrantRecorder persists "always allow" decisions.
type GrantRecorder interface {
	Record(d permission.Descriptor) error
}

// Engine decides capability states. Decisions are layered: policy deny
// entries always win, then session decisions made at a prompt, then
// static and persisted allows, then pattern rules, then the policy's
// unlisted default. Query never mutates; Request may prompt and record
// grants; Revoke masks grants for the exact capability it names.
type Engine struct {
	compiled map[permission.Name]*compiledSection
	unlisted permission.State
	prompter Prompter
	recorder GrantRecorder

	mu      sync.Mutex
	grants  []policy.Grant
	session map[permission.Key]permission.State
	masked  map[permission.Key]bool
}

type compiledSection struct {
	allowAll  bool
	denyAll   bool
	allowList []string
	deny      []string
	rules     []compiledRule
}

type compiledRule struct {
	pattern string
	state   permission.State
	program *vm.Program
}

// New creates a non-interactive engine from a normalized policy
// document. Requests that would prompt fail with ErrNotInteractive.
func New(doc *policy.Document) (*Engine, error) {
	return NewWithPrompter(doc, nil, nil, nil)
}

// NewWithPrompter creates an engine that can escalate through the
// given prompter and persist allow-always decisions through the
// recorder. grants are the persisted decisions loaded at startup.
// Both prompter and recorder may be nil.
func NewWithPrompter(doc *policy.Document, grants []policy.Grant, prompter Prompter, recorder GrantRecorder) (*Engine, error) {
	if doc == nil {
		doc = &policy.Document{}
	}

	compiled, err := compile(doc)
	if err != nil {
		return nil, err
	}

	slog.Debug("policy compiled",
		"sections", len(compiled),
		"grants", len(grants),
		"unlisted", string(doc.UnlistedState()),
	)

	return &Engine{
		compiled: compiled,
		unlisted: doc.UnlistedState(),
		prompter: prompter,
		recorder: recorder,
		grants:   grants,
		session:  make(map[permission.Key]permission.State),
		masked:   make(map[permission.Key]bool),
	}, nil
}

// NewTrusting creates an engine that grants every capability, for
// operators who explicitly opt out of gating.
func NewTrusting() *Engine {
	doc := &policy.Document{Capabilities: make(map[string]policy.Section)}
	for _, name := range permission.Names() {
		doc.Capabilities[string(name)] = policy.Section{Allow: policy.AllowAll()}
	}
	e, err := NewWithPrompter(doc, nil, nil, nil)
	if err != nil {
		// Blanket allows carry no rules, so there is nothing to fail.
		panic(fmt.Sprintf("engine: trusting policy failed to compile: %v", err))
	}
	return e
}

func compile(doc *policy.Document) (map[permission.Name]*compiledSection, error) {
	compiled := make(map[permission.Name]*compiledSection)

	for _, name := range permission.Names() {
		section, ok := doc.Section(name)
		if !ok {
			continue
		}

		c := &compiledSection{deny: section.Deny}

		if blanket, isBool := section.Allow.Bool(); isBool {
			c.allowAll = blanket
			c.denyAll = !blanket
		} else {
			c.allowList = section.Allow.List()
		}

		for _, r := range section.Rules {
			cr := compiledRule{pattern: r.Pattern, state: permission.State(r.State)}
			if r.When != "" {
				program, err := expr.Compile(r.When, expr.Env(policy.RuleEnv{}), expr.AsBool())
				if err != nil {
					return nil, fmt.Errorf("failed to compile %s rule %q: %w", name, r.Pattern, err)
				}
				cr.program = program
			}
			c.rules = append(c.rules, cr)
		}

		compiled[name] = c
	}

	return compiled, nil
}

// Query reports the capability's state without escalating or mutating
// anything.
func (e *Engine) Query(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decideLocked(d)
}

// Request escalates the capability. A capability the policy already
// decides keeps that decision without prompting; only prompt-state
// capabilities reach the user.
func (e *Engine) Request(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	e.mu.Lock()
	state, err := e.decideLocked(d)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	if state != permission.StatePrompt {
		return state, nil
	}

	if e.prompter == nil || !e.prompter.Interactive() {
		return "", ErrNotInteractive
	}

	key := d.Key()
	decision, err := e.prompter.Prompt(ctx, d)
	if err != nil {
		return "", fmt.Errorf("failed to prompt for %s: %w", key, err)
	}

	result := permission.StateDenied
	if decision.Allow {
		result = permission.StateGranted
	}

	e.mu.Lock()
	e.session[key] = result
	e.mu.Unlock()

	slog.Info("capability decided at prompt",
		"capability", key.String(),
		"state", string(result),
		"always", decision.Always,
	)

	if decision.Allow && decision.Always {
		if e.recorder == nil {
			slog.Warn("no grant recorder configured, allow-always kept for this session only", "capability", key.String())
		} else if err := e.recorder.Record(d); err != nil {
			slog.Warn("failed to persist grant", "capability", key.String(), "error", err)
		}
	}

	return result, nil
}

// Revoke drops the session decision for the exact capability d names
// and masks any static or persisted grant written for exactly that
// qualifier. Broader grants keep covering their descendants, so the
// returned state can still be granted.
func (e *Engine) Revoke(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	key := d.Key()

	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.session, key)
	e.masked[key] = true
	slog.Debug("capability revoked", "capability", key.String())

	return e.decideLocked(d)
}

func (e *Engine) decideLocked(d permission.Descriptor) (permission.State, error) {
	key := d.Key()
	c := e.compiled[key.Name]

	// Policy denials are authoritative; nothing below overrides them.
	if c != nil {
		if c.denyAll {
			return permission.StateDenied, nil
		}
		for _, pattern := range c.deny {
			if covers(key.Name, pattern, key.Qualifier) {
				return permission.StateDenied, nil
			}
		}
	}

	if state, ok := e.session[key]; ok {
		return state, nil
	}
	if state, ok := e.coveringSession(key); ok {
		return state, nil
	}

	if c != nil {
		if c.allowAll && !e.masked[permission.Key{Name: key.Name}] {
			return permission.StateGranted, nil
		}
		for _, pattern := range c.allowList {
			if e.masked[permission.Key{Name: key.Name, Qualifier: pattern}] {
				continue
			}
			if covers(key.Name, pattern, key.Qualifier) {
				return permission.StateGranted, nil
			}
		}
	}

	for _, g := range e.grants {
		if g.Name != string(key.Name) {
			continue
		}
		if e.masked[permission.Key{Name: key.Name, Qualifier: g.Qualifier}] {
			continue
		}
		if covers(key.Name, g.Qualifier, key.Qualifier) {
			return permission.StateGranted, nil
		}
	}

	if c != nil {
		for _, r := range c.rules {
			if !covers(key.Name, r.pattern, key.Qualifier) {
				continue
			}
			if r.program != nil {
				out, err := expr.Run(r.program, policy.RuleEnv{
					Name:      string(key.Name),
					Qualifier: key.Qualifier,
				})
				if err != nil {
					return "", fmt.Errorf("failed to evaluate %s rule %q: %w", key.Name, r.pattern, err)
				}
				if matched, _ := out.(bool); !matched {
					continue
				}
			}
			return r.state, nil
		}
	}

	return e.unlisted, nil
}

// coveringSession looks for a session decision on a broader capability
// of the same kind. Denials win over grants when both cover.
func (e *Engine) coveringSession(key permission.Key) (permission.State, bool) {
	for k, state := range e.session {
		if k.Name != key.Name || k == key || state != permission.StateDenied {
			continue
		}
		if covers(key.Name, k.Qualifier, key.Qualifier) {
			return permission.StateDenied, true
		}
	}
	for k, state := range e.session {
		if k.Name != key.Name || k == key || state != permission.StateGranted {
			continue
		}
		if covers(key.Name, k.Qualifier, key.Qualifier) {
			return permission.StateGranted, true
		}
	}
	return "", false
}

// covers performs glob-like pattern matching between a policy or grant
// pattern and a capability qualifier. An empty pattern is a kind-wide
// grant and covers every qualifier. Path kinds additionally treat a
// pattern as a directory covering everything beneath it.
func covers(name permission.Name, pattern, qualifier string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if pattern == qualifier {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(qualifier, strings.TrimSuffix(pattern, "*"))
	}
	if pathKind(name) && qualifier != "" {
		return strings.HasPrefix(qualifier, strings.TrimSuffix(pattern, "/")+"/")
	}
	return false
}

func pathKind(name permission.Name) bool {
	switch name {
	case permission.NameRead, permission.NameWrite, permission.NameFfi, permission.NameRun:
		return true
	}
	return false
}
