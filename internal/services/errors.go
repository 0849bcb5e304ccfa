// Package services defines the business logic for chat turns, history and
// reply feedback. This file centralizes the service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Every pipeline failure belongs to exactly one kind: ErrValidation,
// ErrUnauthorized, ErrStore or ErrGeneration. Translation into user-facing
// messages and HTTP status codes happens in the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Failure kinds.
var (
	// ErrValidation marks malformed caller input. Its message is safe to show.
	ErrValidation = errors.New("invalid input")

	// ErrUnauthorized marks a caller that could not be resolved to a user.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStore marks a failure of the message store.
	ErrStore = errors.New("message store failure")

	// ErrGeneration marks a failed or unparseable reply from the generator.
	ErrGeneration = errors.New("reply generation failed")
)

// Validation errors. Each wraps ErrValidation.
var (
	// ErrEmptyMessage is returned when the message is empty after trimming.
	ErrEmptyMessage = fmt.Errorf("%w: message is empty", ErrValidation)

	// ErrMessageTooLong is returned when the message exceeds the configured
	// character limit.
	ErrMessageTooLong = fmt.Errorf("%w: message too long", ErrValidation)

	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (-1 or 1).
	ErrInvalidFeedback = fmt.Errorf("%w: feedback value must be -1 or 1", ErrValidation)
)

// Feedback errors.
var (
	// ErrTurnNotFound indicates that the turn does not exist, was cleared, or
	// belongs to another user.
	ErrTurnNotFound = errors.New("turn not found")

	// ErrReplyPending is returned when rating a turn that has no reply yet.
	ErrReplyPending = errors.New("turn has no reply to rate")

	// ErrDuplicateFeedback is returned when the turn was already rated.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)

// Collaborator names used in logs and PipelineError.
const (
	CollabAuthGate       = "auth_gate"
	CollabMessageStore   = "message_store"
	CollabReplyGenerator = "reply_generator"
)

// PipelineError is a classified failure from a collaborator. It carries the
// context needed to diagnose it while errors.Is matches on Kind, so callers
// only ever branch on the four kinds.
type PipelineError struct {
	Kind         error  // one of ErrUnauthorized, ErrStore, ErrGeneration
	Op           string // submit, list, clear, feedback
	Collaborator string
	TurnID       string // empty when no turn exists yet
	Err          error
}

func (e *PipelineError) Error() string {
	msg := e.Op + ": " + e.Collaborator + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *PipelineError) Is(target error) bool { return target == e.Kind }

func (e *PipelineError) Unwrap() error { return e.Err }

// Kind returns the failure kind of err, or nil when err is not one of the
// service's classified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrUnauthorized, ErrStore, ErrGeneration} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func authFailure(op string, err error) error {
	return &PipelineError{Kind: ErrUnauthorized, Op: op, Collaborator: CollabAuthGate, Err: err}
}

func storeFailure(op, turnID string, err error) error {
	return &PipelineError{Kind: ErrStore, Op: op, Collaborator: CollabMessageStore, TurnID: turnID, Err: err}
}

func generationFailure(op, turnID string, err error) error {
	return &PipelineError{Kind: ErrGeneration, Op: op, Collaborator: CollabReplyGenerator, TurnID: turnID, Err: err}
}
