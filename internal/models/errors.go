// Package models defines the shared error taxonomy for interviewd.
package models

import "errors"

// Session and pipeline errors shared across modules.
var (
	// ErrDuplicateAttempt indicates the (interviewID, candidateEmail) pair
	// already has a persisted attempt. Surfaced both by the pre-check and by
	// a unique-constraint violation on insert.
	ErrDuplicateAttempt = errors.New("candidate has already attempted this interview")

	// ErrPermissionDenied indicates the microphone permission prompt was
	// refused. Blocks session start.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrProviderFailure indicates an unrecoverable call-provider error. A
	// fresh session instance is required to retry.
	ErrProviderFailure = errors.New("call provider failure")

	// ErrMissingContext indicates required identity fields were absent when
	// the feedback pipeline ran. The scoring service is never contacted.
	ErrMissingContext = errors.New("missing interview identity fields")

	// ErrPersistenceFailed indicates the attempt record could not be written
	// after the call completed. Logged and retried once, never user-facing.
	ErrPersistenceFailed = errors.New("attempt persistence failed")

	// ErrDevice indicates a media device could not be acquired or released.
	// Never affects session state.
	ErrDevice = errors.New("media device error")

	// ErrInvalidTransition indicates an operation was invoked in a state
	// that does not permit it.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Validation errors for interview context input.
var (
	ErrEmptyInterviewID    = errors.New("interview ID cannot be empty")
	ErrEmptyCandidateEmail = errors.New("candidate email cannot be empty")
	ErrEmptyCandidateName  = errors.New("candidate name cannot be empty")
	ErrTooManyQuestions    = errors.New("question list exceeds maximum length")
)
