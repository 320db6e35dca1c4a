package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match with errors.Is.
var (
	ErrUnknownVerb       = errors.New("unknown verb")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrUnknownVariant    = errors.New("unknown variant")
	ErrUnknownPlace      = errors.New("unknown place")
	ErrItemNotFound      = errors.New("item not found")
	ErrTickInProgress    = errors.New("tick already in progress")
	ErrDuplicateEntity   = errors.New("entity id already present")
)

// ScriptError wraps a failure raised by a behaviour function or system,
// carrying enough context to find the rule that misbehaved.
type ScriptError struct {
	Entity string // entity id
	Type   string // entity type id
	Verb   string // behaviour verb, empty for systems
	Event  string // event name, empty for behaviours
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("system failed on event %q for %s (%s): %v", e.Event, e.Entity, e.Type, e.Err)
	}
	return fmt.Sprintf("behaviour %q failed for %s (%s): %v", e.Verb, e.Entity, e.Type, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// recovered converts a recovered panic value into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
