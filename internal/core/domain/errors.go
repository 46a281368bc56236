package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrUnresolvedEntities  = errors.New("unresolved entities")
	ErrImmutableSuggestion = errors.New("suggestion already set")
	ErrAlreadyResolved     = errors.New("already resolved")
	ErrAlreadyApproved     = errors.New("already approved")
	ErrConflict            = errors.New("concurrent modification")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// NewError builds a kinded error from a message when there is no underlying cause.
func NewError(kind error, operation, format string, args ...any) error {
	return WrapError(kind, operation, fmt.Errorf(format, args...))
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

var errorKinds = []struct {
	kind error
	name string
}{
	{ErrValidation, "validation"},
	{ErrNotFound, "not_found"},
	{ErrInvalidState, "invalid_state"},
	{ErrUnresolvedEntities, "unresolved_entities"},
	{ErrImmutableSuggestion, "immutable_suggestion"},
	{ErrAlreadyResolved, "already_resolved"},
	{ErrAlreadyApproved, "already_approved"},
	{ErrConflict, "conflict"},
	{ErrUnauthorized, "unauthorized"},
	{ErrTemporary, "temporary"},
}

// KindName returns a stable machine name for the first kind err carries, or "internal".
func KindName(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
