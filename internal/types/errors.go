package types

import "errors"

var (
	// ErrInvalidRequest marks a question request outside its bounds.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConfiguration marks missing or invalid settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrEvidenceExhausted means no chunks reached synthesis.
	ErrEvidenceExhausted = errors.New("no supporting evidence available for synthesis")

	// ErrCollaboratorUnavailable wraps generation, embedding and rerank failures.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrFetchFailure wraps a per-URL fetch or parse failure.
	ErrFetchFailure = errors.New("fetch failed")
)
