// Package common defines shared constants and sentinel errors used across
// Stepwise components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Key provider errors. ErrKeyUnavailable means the backing keystore is
	// locked or no session is initialized. Callers must treat it as
	// "no data available", never as empty data.
	ErrKeyUnavailable = errors.New("encryption key unavailable")

	// Field cipher errors. ErrKeyMismatch is recoverable by
	// re-authentication; ErrCiphertextCorrupt is a data-integrity error
	// that must be surfaced, not dropped.
	ErrKeyMismatch       = errors.New("decrypt failed: key mismatch")
	ErrCiphertextCorrupt = errors.New("decrypt failed: ciphertext corrupt")

	// Remote call classification. ErrTransient and ErrTimeout are the only
	// retryable kinds; everything else surfaces immediately.
	ErrTransient    = errors.New("transient network error")
	ErrTimeout      = errors.New("operation timed out")
	ErrValidation   = errors.New("validation rejected")
	ErrConflict     = errors.New("version conflict")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrQueueCorrupt signals a sync queue invariant violation (more than
	// one active item for a single record). It aborts the current drain.
	ErrQueueCorrupt = errors.New("sync queue corrupt")
)
