package permission

import (
	"database/sql/driver"
	"fmt"
)

// State is the tracked condition of a capability.
type State string

const (
	// StateGranted allows use of the capability.
	StateGranted State = "granted"
	// StateDenied blocks the capability without prompting.
	StateDenied State = "denied"
	// StatePrompt defers the decision to an interactive request.
	StatePrompt State = "prompt"
)

// Validate returns an error if the state value is invalid.
func (s State) Validate() error {
	switch s {
	case StateGranted, StateDenied, StatePrompt:
		return nil
	default:
		return fmt.Errorf("invalid state: %s", s)
	}
}

// IsGranted returns true if the capability may be used.
func (s State) IsGranted() bool {
	return s == StateGranted
}

// Value implements driver.Valuer for database/sql.
func (s State) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for database/sql.
func (s *State) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		state := State(v)
		if err := state.Validate(); err != nil {
			return err
		}
		*s = state
		return nil
	case []byte:
		state := State(v)
		if err := state.Validate(); err != nil {
			return err
		}
		*s = state
		return nil
	default:
		return fmt.Errorf("cannot scan %T into State", value)
	}
}
