package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUserCancelled signals that interactive input was abandoned during
	// configuration. The store is left untouched.
	ErrUserCancelled = errors.New("configuration cancelled")

	// ErrConnectivityTest signals that the probe request failed during
	// configuration, before anything was persisted.
	ErrConnectivityTest = errors.New("connectivity test failed")

	// ErrMetadataNotFound signals that the catalog has no entry for a model
	// the configuration flow requires.
	ErrMetadataNotFound = errors.New("no catalog metadata for model")

	// ErrNoModels signals that the remote model list contained no model with
	// known catalog metadata.
	ErrNoModels = errors.New("no models with known metadata")
)

// BackendError is a non-2xx response from a backend during normal operation.
// The core never retries; the error carries the backend status and message
// for the caller.
type BackendError struct {
	Provider string
	Status   int
	Message  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, e.Message)
}

// IsCancellation reports whether err stems from the caller's cancellation
// signal rather than a backend failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
