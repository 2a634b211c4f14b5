package domain

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	// ErrUnsupportedCRS marks a coordinate reference that cannot be
	// resolved or transformed.
	ErrUnsupportedCRS = fmt.Errorf("coordinate reference system: %w", ErrUnsupported)

	// ErrUnsupportedServer marks an unknown server identifier with no
	// custom URL to fall back on.
	ErrUnsupportedServer = fmt.Errorf("server: %w", ErrNotFound)

	// ErrNoTilesFetched is returned when every tile attempt exhausted
	// its retries; the pipeline aborts before mosaic assembly.
	ErrNoTilesFetched = fmt.Errorf("no tiles fetched: %w", ErrUnavailable)

	// ErrBuildFailed marks mosaic assembly failures.
	ErrBuildFailed = fmt.Errorf("mosaic build: %w", ErrInternal)

	// ErrJobNotFound marks a lookup of an unknown job id.
	ErrJobNotFound = fmt.Errorf("job: %w", ErrNotFound)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// NewValidationError builds a ValidationError with just a field and a
// message, the common case.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// FetchError represents a failed tile fetch after the retry budget was
// exhausted. It is always local to one tile and never aborts the run on
// its own.
type FetchError struct {
	Tile     maptile.Tile
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching tile %d/%d/%d after %d attempts: %v",
		e.Tile.Z, e.Tile.X, e.Tile.Y, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// BuildError represents a mosaic assembly failure with its stage.
type BuildError struct {
	Stage string // decode, composite, resample, encode
	Err   error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("mosaic assembly failed during %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return ErrBuildFailed
}

// Cause returns the original compositing error.
func (e *BuildError) Cause() error {
	return e.Err
}

// ImportError represents a raster importer collaborator failure.
type ImportError struct {
	Target string // importer identifier (local path, remote endpoint)
	Err    error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	return fmt.Sprintf("raster import to %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying error.
func (e *ImportError) Unwrap() error {
	return e.Err
}
