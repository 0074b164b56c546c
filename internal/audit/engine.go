package audit

import (
	"context"
	"log/slog"

	"github.com/gatelet-dev/gatelet/internal/permission"
	"github.com/gatelet-dev/gatelet/internal/redaction"
)

// Engine wraps a permission engine so every successful operation is
// journaled. Journal failures are logged and never block the caller.
type Engine struct {
	inner    permission.Engine
	journal  *Journal
	scrubber *redaction.Scrubber
	source   string
}

// NewEngine decorates inner with audit recording. scrubber may be nil
// to store qualifiers verbatim; source tags each event with its origin
// (the CLI, a plugin name).
func NewEngine(inner permission.Engine, journal *Journal, scrubber *redaction.Scrubber, source string) *Engine {
	return &Engine{inner: inner, journal: journal, scrubber: scrubber, source: source}
}

func (e *Engine) Query(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	return e.observe(ctx, OpQuery, d, e.inner.Query)
}

func (e *Engine) Request(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	return e.observe(ctx, OpRequest, d, e.inner.Request)
}

func (e *Engine) Revoke(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	return e.observe(ctx, OpRevoke, d, e.inner.Revoke)
}

func (e *Engine) observe(ctx context.Context, op Op, d permission.Descriptor, call func(context.Context, permission.Descriptor) (permission.State, error)) (permission.State, error) {
	state, err := call(ctx, d)
	if err != nil {
		return state, err
	}

	qualifier := d.Qualifier()
	if e.scrubber != nil {
		qualifier = e.scrubber.ScrubString(qualifier)
	}
	event := Event{
		Op:        op,
		Name:      d.Name,
		Qualifier: qualifier,
		State:     state,
		Source:    e.source,
	}
	if recordErr := e.journal.Record(ctx, event); recordErr != nil {
		slog.Warn("failed to record audit event", "op", string(op), "capability", d.Key().String(), "error", recordErr)
	}

	return state, nil
}
