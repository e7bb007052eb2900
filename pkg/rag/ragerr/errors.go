package ragerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Soft failures, absorbed by the pipeline (degrade quality, logged only).
var (
	ErrRerankTimeout     = errors.New("rerank timed out")
	ErrRerankUnavailable = errors.New("rerank backend unavailable")
)

// Hard failures, terminal for the turn.
var (
	// ErrRetrievalUnavailable means the chunk store is unreachable. There
	// is no graceful degrade for this: a turn cannot be grounded.
	ErrRetrievalUnavailable = errors.New("retrieval store unavailable")

	// ErrStreamStalled means no fragment arrived within the inactivity
	// window and the underlying connection was aborted.
	ErrStreamStalled = errors.New("generation stream stalled")

	// ErrGenerationTimeout means the generator exceeded the hard turn deadline.
	ErrGenerationTimeout = errors.New("generation timed out")
)

// Session guard errors.
var (
	// ErrTurnInFlight is returned when a user message arrives while the
	// conversation is loading, streaming, or updating citations.
	ErrTurnInFlight = errors.New("a generation is already in flight for this conversation")
)

// GenerationError wraps a backend failure after the primary->fallback
// substitution has been exhausted.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on %s: %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ConversationLoadError marks a failed conversation fetch. It is surfaced
// as resume-error and retried independently of send failures; it never
// rolls back history, since none was fetched.
type ConversationLoadError struct {
	ConversationID uuid.UUID
	Err            error
}

func (e *ConversationLoadError) Error() string {
	return fmt.Sprintf("failed to load conversation %s: %v", e.ConversationID, e.Err)
}

func (e *ConversationLoadError) Unwrap() error {
	return e.Err
}
