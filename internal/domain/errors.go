package domain

import "fmt"

// NotFoundError represents a missing live entity, revision, or parent.
type NotFoundError struct {
	Kind       Kind
	Identifier string
}

func (e NotFoundError) Error() string {
	if e.Kind == "" {
		return "not found"
	}
	if e.Identifier == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Identifier)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// AlreadyExistsError means an undelete or insert target is already live.
type AlreadyExistsError struct {
	Kind       Kind
	Identifier string
}

func (e AlreadyExistsError) Error() string {
	if e.Kind == "" {
		return "already exists"
	}
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Identifier)
}

func (e AlreadyExistsError) Is(target error) bool {
	_, ok := target.(AlreadyExistsError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyExistsError)
	return ok
}

var ErrAlreadyExists = AlreadyExistsError{}

// AlreadyHasIDError rejects inserting an entity that was already saved.
type AlreadyHasIDError struct {
	Kind Kind
	ID   int64
}

func (e AlreadyHasIDError) Error() string {
	if e.Kind == "" {
		return "entity already has an id"
	}
	return fmt.Sprintf("%s %d already has an id", e.Kind, e.ID)
}

func (e AlreadyHasIDError) Is(target error) bool {
	_, ok := target.(AlreadyHasIDError)
	if ok {
		return true
	}
	_, ok = target.(*AlreadyHasIDError)
	return ok
}

var ErrAlreadyHasID = AlreadyHasIDError{}

// NoRevisionsError means an undelete found no history for an identifier.
type NoRevisionsError struct {
	Kind       Kind
	Identifier string
}

func (e NoRevisionsError) Error() string {
	if e.Kind == "" {
		return "no revisions"
	}
	return fmt.Sprintf("no revisions for %s %q", e.Kind, e.Identifier)
}

func (e NoRevisionsError) Is(target error) bool {
	_, ok := target.(NoRevisionsError)
	if ok {
		return true
	}
	_, ok = target.(*NoRevisionsError)
	return ok
}

var ErrNoRevisions = NoRevisionsError{}

// ConflictError means a mutation raced another writer, e.g. two
// undeletes of the same identifier or a spent confirmation token.
type ConflictError struct {
	Kind       Kind
	Identifier string
	Action     Action
}

func (e ConflictError) Error() string {
	if e.Kind == "" {
		return "conflict"
	}
	return fmt.Sprintf("conflicting %s on %s %q", e.Action, e.Kind, e.Identifier)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// PermissionDeniedError is a hard stop from the permission oracle.
type PermissionDeniedError struct {
	ActorID int64
	Kind    Kind
	Action  Action
}

func (e PermissionDeniedError) Error() string {
	if e.Kind == "" {
		return "permission denied"
	}
	return fmt.Sprintf("user %d may not %s %s", e.ActorID, e.Action, e.Kind)
}

func (e PermissionDeniedError) Is(target error) bool {
	_, ok := target.(PermissionDeniedError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionDeniedError)
	return ok
}

var ErrPermissionDenied = PermissionDeniedError{}

// ValidationError reports a caller-supplied field failing a constraint
// before any write happens.
type ValidationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed"
	}
	return fmt.Sprintf("%s.%s: %s", e.Kind, e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// StorageError wraps a failed transaction. The whole transaction rolled
// back; no step committed independently.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage failure in %s", e.Op)
	}
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

func (e StorageError) Is(target error) bool {
	_, ok := target.(StorageError)
	if ok {
		return true
	}
	_, ok = target.(*StorageError)
	return ok
}

var ErrStorage = StorageError{}
