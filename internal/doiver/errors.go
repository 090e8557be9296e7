package doiver

import "errors"

var (
	// ErrNotFound is returned when an article (or its version history)
	// does not exist in the store.
	ErrNotFound = errors.New("article not found")

	// ErrVersionNotFound is returned by strict lookups (the fetch endpoint)
	// when a requested version label has no snapshot. Render paths never see
	// this; they fall back to the current version instead.
	ErrVersionNotFound = errors.New("version not found")

	// ErrCorruptHistory indicates the snapshot history for an article is
	// inconsistent: an append would overwrite an existing version, or the
	// current-version pointer does not match the highest snapshot. This is
	// unrecoverable for the article and must never be silently repaired.
	ErrCorruptHistory = errors.New("version history corrupt")
)
