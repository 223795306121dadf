package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrDuplicatePair is returned when a standard match already exists for a
	// (property, client want) pair.
	ErrDuplicatePair = fmt.Errorf("duplicate property/client pair: %w", ErrConflict)

	// ErrStaleState is returned when a compare-and-swap status write lost a race.
	ErrStaleState = fmt.Errorf("match state changed concurrently: %w", ErrConflict)

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidActor      = errors.New("actor may not perform this action")
	ErrNotParticipant    = errors.New("agent is not a participant of this match")
	ErrMatchNotActive    = errors.New("match is not active for messaging")
)
