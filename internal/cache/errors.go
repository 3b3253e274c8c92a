package cache

import (
	"errors"
	"fmt"
)

const (
	invalidLocationErrorTemplateConstant = "invalid cache location %q/%q: %s"
	ioErrorTemplateConstant              = "cache %s failed for %s: %v"
	corruptEntryErrorTemplateConstant    = "cache entry %s is corrupt: %s"
	rootNotConfiguredMessageConstant     = "cache root not configured"
	entryNotFoundMessageConstant         = "cache entry not found"
)

var (
	// ErrRootNotConfigured indicates a manager was constructed without a root directory.
	ErrRootNotConfigured = errors.New(rootNotConfiguredMessageConstant)
	// ErrEntryNotFound indicates a refresh targeted a location with nothing stored.
	ErrEntryNotFound = errors.New(entryNotFoundMessageConstant)
)

// InvalidLocationError reports a path or key that would escape the cache root.
type InvalidLocationError struct {
	Path    string
	Key     string
	Message string
}

// Error describes the invalid location.
func (locationError InvalidLocationError) Error() string {
	return fmt.Sprintf(invalidLocationErrorTemplateConstant, locationError.Path, locationError.Key, locationError.Message)
}

// IOError wraps a filesystem or serialization failure. Cache I/O failures are fatal to the
// operation that triggered them.
type IOError struct {
	Operation string
	Location  string
	Cause     error
}

// Error describes the failed operation.
func (ioError IOError) Error() string {
	return fmt.Sprintf(ioErrorTemplateConstant, ioError.Operation, ioError.Location, ioError.Cause)
}

// Unwrap exposes the underlying cause.
func (ioError IOError) Unwrap() error {
	return ioError.Cause
}

// CorruptEntryError reports a stored envelope whose checksum does not match its payload.
type CorruptEntryError struct {
	Location string
	Reason   string
}

// Error describes the corrupt entry.
func (corruptError CorruptEntryError) Error() string {
	return fmt.Sprintf(corruptEntryErrorTemplateConstant, corruptError.Location, corruptError.Reason)
}
