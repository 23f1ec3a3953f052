// Package shared holds the error taxonomy every storefront operation reports through.
package shared

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure.
type Kind string

const (
	KindNameConflict       Kind = "name_conflict"
	KindLimitReached       Kind = "limit_reached"
	KindAlreadyAssigned    Kind = "already_assigned"
	KindNotAssigned        Kind = "not_assigned"
	KindStillAssigned      Kind = "still_assigned"
	KindNotFound           Kind = "not_found"
	KindLocked             Kind = "locked"
	KindPersistenceFailure Kind = "persistence_failure"
	KindBusy               Kind = "busy"
	KindInsufficient       Kind = "insufficient"
	KindInvalidState       Kind = "invalid_state"
	KindGenerationFailed   Kind = "generation_failed"
	KindInvalidInput       Kind = "invalid_input"
)

var (
	ErrNameConflict     = errors.New("name already in use")
	ErrLimitReached     = errors.New("limit reached")
	ErrAlreadyAssigned  = errors.New("resource already assigned to funnel")
	ErrNotAssigned      = errors.New("resource not assigned to funnel")
	ErrStillAssigned    = errors.New("resource is still assigned to a funnel")
	ErrNotFound         = errors.New("not found")
	ErrLocked           = errors.New("funnel is locked")
	ErrPersistence      = errors.New("persistence failure")
	ErrBusy             = errors.New("operation already in progress")
	ErrInsufficient     = errors.New("funnel does not meet generation requirements")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrGenerationFailed = errors.New("generation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

var sentinels = map[Kind]error{
	KindNameConflict:       ErrNameConflict,
	KindLimitReached:       ErrLimitReached,
	KindAlreadyAssigned:    ErrAlreadyAssigned,
	KindNotAssigned:        ErrNotAssigned,
	KindStillAssigned:      ErrStillAssigned,
	KindNotFound:           ErrNotFound,
	KindLocked:             ErrLocked,
	KindPersistenceFailure: ErrPersistence,
	KindBusy:               ErrBusy,
	KindInsufficient:       ErrInsufficient,
	KindInvalidState:       ErrInvalidState,
	KindGenerationFailed:   ErrGenerationFailed,
	KindInvalidInput:       ErrInvalidInput,
}

// Entity names the kind of object an error is about.
type Entity string

const (
	EntityResource Entity = "resource"
	EntityFunnel   Entity = "funnel"
	EntityCatalog  Entity = "catalog"
)

// OperationError is returned by every store, coordinator and gate operation.
// errors.Is matches both the kind sentinel and any wrapped cause.
type OperationError struct {
	Kind   Kind
	Entity Entity
	// Name is the offending entity's display name, or its id when no name is known.
	Name   string
	Detail string
	Err    error
}

// NewError builds an OperationError for kind. cause may be nil.
func NewError(kind Kind, entity Entity, name string, cause error) *OperationError {
	return &OperationError{Kind: kind, Entity: entity, Name: name, Err: cause}
}

// WithDetail attaches extra context rendered after the message.
func (e *OperationError) WithDetail(detail string) *OperationError {
	e.Detail = detail
	return e
}

func (e *OperationError) Error() string {
	s := fmt.Sprintf("%s %q: %s", e.Entity, e.Name, e.Kind)
	if e.Detail != "" {
		s += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OperationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Message is the short text shown next to the entity in the UI.
func (e *OperationError) Message() string {
	name := e.Name
	if name == "" {
		name = "this " + string(e.Entity)
	}
	switch e.Kind {
	case KindNameConflict:
		return fmt.Sprintf("A resource named %q already exists", name)
	case KindLimitReached:
		if e.Entity == EntityCatalog {
			return "Your catalog is full. Delete a resource to add another"
		}
		return fmt.Sprintf("%s has no room left for this category", name)
	case KindAlreadyAssigned:
		return fmt.Sprintf("%s is already in this funnel", name)
	case KindNotAssigned:
		return fmt.Sprintf("%s is not in this funnel", name)
	case KindStillAssigned:
		return fmt.Sprintf("Remove %s from every funnel before deleting it", name)
	case KindNotFound:
		return fmt.Sprintf("%s no longer exists. Refresh to see the latest", name)
	case KindLocked:
		return fmt.Sprintf("%s is locked while it is generating or live", name)
	case KindPersistenceFailure:
		return fmt.Sprintf("Could not save changes to %s. Please try again", name)
	case KindBusy:
		return fmt.Sprintf("%s is already being updated", name)
	case KindInsufficient:
		return fmt.Sprintf("%s needs more resources before it can be generated", name)
	case KindInvalidState:
		return fmt.Sprintf("%s cannot do that right now", name)
	case KindGenerationFailed:
		return fmt.Sprintf("Generating %s failed. Please try again", name)
	case KindInvalidInput:
		if e.Detail != "" {
			return fmt.Sprintf("%s is invalid: %s", name, e.Detail)
		}
		return fmt.Sprintf("%s is invalid", name)
	default:
		return fmt.Sprintf("Something went wrong with %s", name)
	}
}

// AsOperationError extracts an OperationError from err.
func AsOperationError(err error) (*OperationError, bool) {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, or "" when err is not an OperationError.
func KindOf(err error) Kind {
	if opErr, ok := AsOperationError(err); ok {
		return opErr.Kind
	}
	return ""
}

// FromPersistence classifies an error returned by a repository call.
// Storage-detected not-found and name conflicts keep their kind; everything
// else is a persistence failure wrapping the transport error.
func FromPersistence(err error, entity Entity, name string) *OperationError {
	switch {
	case errors.Is(err, ErrNotFound):
		return NewError(KindNotFound, entity, name, nil)
	case errors.Is(err, ErrNameConflict):
		return NewError(KindNameConflict, entity, name, nil)
	default:
		return NewError(KindPersistenceFailure, entity, name, err)
	}
}
