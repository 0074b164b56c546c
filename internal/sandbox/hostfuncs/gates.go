// Package hostfuncs provides the gatelet_host functions exposed to
// sandboxed plugins. Every function that touches a host resource gates
// on the permission facade first.
package hostfuncs

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatelet-dev/gatelet/internal/permission"
)

// ErrDenied marks host operations refused because the capability is
// not granted. Match with errors.Is.
var ErrDenied = errors.New("capability denied")

// IsDenied reports whether err is a gate denial.
func IsDenied(err error) bool {
	return errors.Is(err, ErrDenied)
}

// Gate answers capability checks for host functions.
type Gate struct {
	perms *permission.Permissions
}

// NewGate creates a gate over the permission facade.
func NewGate(perms *permission.Permissions) *Gate {
	if perms == nil {
		panic("hostfuncs: Gate requires a Permissions facade")
	}
	return &Gate{perms: perms}
}

// State reports the capability's current state without escalating it.
func (g *Gate) State(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	status, err := g.perms.QuerySync(ctx, d)
	if err != nil {
		return "", err
	}
	return status.State(), nil
}

// Request escalates the capability, prompting when possible.
func (g *Gate) Request(ctx context.Context, d permission.Descriptor) (permission.State, error) {
	status, err := g.perms.RequestSync(ctx, d)
	if err != nil {
		return "", err
	}
	return status.State(), nil
}

// Require returns ErrDenied unless the capability is granted.
func (g *Gate) Require(ctx context.Context, d permission.Descriptor) error {
	state, err := g.State(ctx, d)
	if err != nil {
		return err
	}
	if state != permission.StateGranted {
		return fmt.Errorf("%w: %s", ErrDenied, d.Key())
	}
	return nil
}
