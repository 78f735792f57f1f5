package audio

import (
	"errors"
	"fmt"
)

// Audio subsystem errors. Load failures are wrapped in *LoadError.
var (
	// ErrResolve indicates neither a local file nor a bundle entry exists.
	ErrResolve = errors.New("sound not found")

	// ErrDecode indicates the backend rejected the audio data.
	ErrDecode = errors.New("sound could not be decoded")

	// ErrStaleHandle indicates a command referenced a URL that is not loaded
	// and could not be loaded.
	ErrStaleHandle = errors.New("sound is not loaded")

	// ErrInterrupted indicates a blocking load wait was abandoned by its caller.
	ErrInterrupted = errors.New("wait for sound interrupted")

	// ErrClosed indicates the cache or queue has shut down.
	ErrClosed = errors.New("audio subsystem closed")
)

// LoadError records why a sound could not be made available.
type LoadError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }
