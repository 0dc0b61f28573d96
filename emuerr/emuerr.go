// Package emuerr defines the error kinds shared by every layer of the
// launcher. Callers match them with errors.Is.
package emuerr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for file specs of an unsupported shape.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a target element selector matches nothing usable.
	ErrNotFound = errors.New("not found")

	// ErrNotReady is returned when an operation needs a subsystem that is not initialized yet.
	ErrNotReady = errors.New("not ready")

	// ErrTimeout is returned when a polled file never reached a stable size.
	ErrTimeout = errors.New("timeout")

	// ErrAborted is returned when the cancellation signal was observed mid-operation.
	ErrAborted = errors.New("aborted")

	// ErrLoadFailure is returned when a network fetch or module import failed.
	ErrLoadFailure = errors.New("load failure")

	// ErrUnsupportedScript is returned when a core loader script matches no known packaging style.
	ErrUnsupportedScript = errors.New("unsupported core script")
)

// CheckAborted returns an error wrapping ErrAborted and the context error
// once ctx is done, nil otherwise.
func CheckAborted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return nil
}
