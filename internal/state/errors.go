package state

import "errors"

var (
	// ErrNotFound is returned when an id or index does not address an
	// existing record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a record is added with an id that is
	// already in use.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrUnhandledKeyframeValue is returned when a keyframe value is neither
	// a number nor a comma separated tuple.
	ErrUnhandledKeyframeValue = errors.New("unhandled keyframe value")
	// ErrInvalidValue is returned when a scalar is outside its domain.
	ErrInvalidValue = errors.New("invalid value")
)
