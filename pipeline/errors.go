package pipeline

import "errors"

// Errors surfaced to the caller. Stage-local failures are absorbed and
// degrade the answer instead; only state misuse and misconfiguration are
// fatal.
var (
	// ErrInvalidState means Resume was called for a thread that has no
	// suspended checkpoint.
	ErrInvalidState = errors.New("pipeline: no suspended run for thread")
	// ErrNotResumable means the thread's run was explicitly cancelled.
	ErrNotResumable = errors.New("pipeline: run has been cancelled")
	// ErrBusy means Submit was called while the thread is suspended
	// awaiting feedback.
	ErrBusy = errors.New("pipeline: thread is awaiting feedback; use Resume")
)
