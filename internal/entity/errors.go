package entity

import "errors"

// Errors returned by entity construction, commands and the registry.
//
//	if errors.Is(err, entity.ErrInvalidSpeed) {
//	    // reject the request
//	}
var (
	// ErrUnmappedAspect is returned when a binary sensor is requested for a
	// state key that has no display suffix.
	ErrUnmappedAspect = errors.New("entity: unmapped aspect")

	// ErrMissingState is returned when a record lacks a state key the
	// entity cannot exist without.
	ErrMissingState = errors.New("entity: missing required state")

	// ErrInvalidSpeed is returned when a fan speed is not in its speed list.
	ErrInvalidSpeed = errors.New("entity: invalid speed")

	// ErrUnsupported is returned for commands an entity does not accept.
	ErrUnsupported = errors.New("entity: operation not supported")

	// ErrDuplicateEntity is returned when an entity key is already registered.
	ErrDuplicateEntity = errors.New("entity: already registered")

	// ErrNotFound is returned when an entity key is not registered.
	ErrNotFound = errors.New("entity: not found")

	// ErrMissingDependency is returned when a constructor is missing a
	// cache or dispatcher.
	ErrMissingDependency = errors.New("entity: missing dependency")
)
