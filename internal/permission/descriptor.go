// Package permission tracks the status of capabilities held by
// sandboxed plugins. A Permissions facade validates capability
// descriptors, consults a decision engine, and resolves results
// through a Tracker that guarantees one live Status object per
// capability for the life of the process.
package permission

import (
	"errors"
	"fmt"

	"github.com/gatelet-dev/gatelet/internal/pathutil"
)

// ErrInvalidDescriptor marks descriptors whose kind tag is unknown.
// Facade operations wrap it with the offending tag; match with
// errors.Is.
var ErrInvalidDescriptor = errors.New("invalid capability descriptor")

// Descriptor names a single capability. Name selects the kind; at most
// one further field identifies the scope within the kind. Fields that
// are not the kind's identifying field are ignored, and an empty
// identifying field names the whole kind.
type Descriptor struct {
	Name Name

	// Path identifies read, write and ffi capabilities. File URLs are
	// converted to plain paths by Normalize.
	Path string
	// Host identifies net capabilities, as host or host:port.
	Host string
	// Command identifies run capabilities. File URLs are converted to
	// plain paths by Normalize.
	Command string
	// Variable identifies env capabilities.
	Variable string
	// Kind identifies sys capabilities (hostname, osRelease, ...).
	Kind string
}

// NewDescriptor builds a descriptor for kind, placing qualifier into
// the kind's identifying field. Kinds without qualifiers (hrtime)
// ignore it.
func NewDescriptor(name Name, qualifier string) Descriptor {
	d := Descriptor{Name: name}
	switch name {
	case NameRead, NameWrite, NameFfi:
		d.Path = qualifier
	case NameNet:
		d.Host = qualifier
	case NameRun:
		d.Command = qualifier
	case NameEnv:
		d.Variable = qualifier
	case NameSys:
		d.Kind = qualifier
	}
	return d
}

// Validate checks the kind tag. The zero value is invalid, which
// covers absent descriptors at the API boundary.
func (d Descriptor) Validate() error {
	if !d.Name.Valid() {
		return fmt.Errorf("%w: unknown capability kind %q", ErrInvalidDescriptor, string(d.Name))
	}
	return nil
}

// Qualifier returns the identifying field for the descriptor's kind.
func (d Descriptor) Qualifier() string {
	switch d.Name {
	case NameRead, NameWrite, NameFfi:
		return d.Path
	case NameNet:
		return d.Host
	case NameRun:
		return d.Command
	case NameEnv:
		return d.Variable
	case NameSys:
		return d.Kind
	default:
		return ""
	}
}

// Normalize converts file URL qualifiers of the path-bearing kinds
// into plain paths. Other kinds and non-URL values pass through
// byte-for-byte; paths are not cleaned or resolved, so identity stays
// textual. Conversion failures carry the kind for context and wrap the
// underlying error unchanged.
func (d Descriptor) Normalize() (Descriptor, error) {
	switch d.Name {
	case NameRead, NameWrite, NameFfi:
		path, err := pathutil.FromURL(d.Path)
		if err != nil {
			return Descriptor{}, fmt.Errorf("failed to normalize %s path: %w", d.Name, err)
		}
		d.Path = path
	case NameRun:
		command, err := pathutil.FromURL(d.Command)
		if err != nil {
			return Descriptor{}, fmt.Errorf("failed to normalize run command: %w", err)
		}
		d.Command = command
	}
	return d, nil
}

// Key derives the canonical identity of the capability d names.
func (d Descriptor) Key() Key {
	return Key{Name: d.Name, Qualifier: d.Qualifier()}
}

// String renders the descriptor for logs and prompts.
func (d Descriptor) String() string {
	return d.Key().String()
}
