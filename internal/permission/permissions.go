package permission

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentQueries bounds engine fan-out in QueryAll.
const maxConcurrentQueries = 8

// Engine is the decision authority the facade consults. Query is
// read-only; Request may escalate (prompting the user, recording
// grants); Revoke downgrades. Implementations return the resulting
// state, or an error that the facade propagates to its caller
// unchanged.
type Engine interface {
	Query(ctx context.Context, d Descriptor) (State, error)
	Request(ctx context.Context, d Descriptor) (State, error)
	Revoke(ctx context.Context, d Descriptor) (State, error)
}

// Permissions is the capability facade. Every operation validates the
// descriptor, normalizes it, consults the engine, and resolves the
// result through the tracker, so callers always receive the live
// Status for the capability. On any failure the tracker is untouched.
//
// Construct one Permissions per process and pass it by handle.
type Permissions struct {
	engine  Engine
	tracker *Tracker
}

// New creates a facade with its own tracker.
func New(engine Engine) *Permissions {
	return NewWithTracker(engine, NewTracker())
}

// NewWithTracker creates a facade over an existing tracker, for
// callers that share one tracker across facades.
func NewWithTracker(engine Engine, tracker *Tracker) *Permissions {
	if engine == nil {
		panic("permission: Permissions requires an Engine")
	}
	if tracker == nil {
		panic("permission: Permissions requires a Tracker")
	}
	return &Permissions{engine: engine, tracker: tracker}
}

// Tracker returns the facade's status tracker.
func (p *Permissions) Tracker() *Tracker {
	return p.tracker
}

// QuerySync reports the capability's current state without escalating
// it.
func (p *Permissions) QuerySync(ctx context.Context, d Descriptor) (*Status, error) {
	return p.resolve(ctx, "query", d, p.engine.Query)
}

// RequestSync asks the engine to escalate the capability, prompting
// the user when the engine is interactive.
func (p *Permissions) RequestSync(ctx context.Context, d Descriptor) (*Status, error) {
	return p.resolve(ctx, "request", d, p.engine.Request)
}

// RevokeSync asks the engine to downgrade the capability.
func (p *Permissions) RevokeSync(ctx context.Context, d Descriptor) (*Status, error) {
	return p.resolve(ctx, "revoke", d, p.engine.Revoke)
}

// Query is the deferred form of QuerySync. The returned future is
// settled before Query returns; no goroutine is started.
func (p *Permissions) Query(ctx context.Context, d Descriptor) *Future[*Status] {
	return settled(p.QuerySync(ctx, d))
}

// Request is the deferred form of RequestSync.
func (p *Permissions) Request(ctx context.Context, d Descriptor) *Future[*Status] {
	return settled(p.RequestSync(ctx, d))
}

// Revoke is the deferred form of RevokeSync.
func (p *Permissions) Revoke(ctx context.Context, d Descriptor) *Future[*Status] {
	return settled(p.RevokeSync(ctx, d))
}

// QueryAll resolves several capabilities at once, consulting the
// engine concurrently. Results keep the order of descs. The first
// failure cancels the remaining queries and is returned; no status is
// tracked for a batch that fails.
func (p *Permissions) QueryAll(ctx context.Context, descs []Descriptor) ([]*Status, error) {
	type decided struct {
		desc  Descriptor
		state State
	}
	results := make([]decided, len(descs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)

	for i, d := range descs {
		g.Go(func() error {
			if err := d.Validate(); err != nil {
				return err
			}
			nd, err := d.Normalize()
			if err != nil {
				return err
			}
			state, err := p.engine.Query(ctx, nd)
			if err != nil {
				return fmt.Errorf("failed to query %s: %w", nd.Key(), err)
			}
			results[i] = decided{desc: nd, state: state}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses := make([]*Status, len(results))
	for i, r := range results {
		statuses[i] = p.tracker.Resolve(r.desc, r.state)
	}
	return statuses, nil
}

func (p *Permissions) resolve(ctx context.Context, op string, d Descriptor, decide func(context.Context, Descriptor) (State, error)) (*Status, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	nd, err := d.Normalize()
	if err != nil {
		return nil, err
	}
	state, err := decide(ctx, nd)
	if err != nil {
		return nil, err
	}

	slog.Debug("capability resolved", "op", op, "capability", nd.Key().String(), "state", string(state))
	return p.tracker.Resolve(nd, state), nil
}
