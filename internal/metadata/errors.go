package metadata

import (
	"fmt"
)

const (
	fetchErrorStatusTemplateConstant  = "fetch %s failed with status %d"
	fetchErrorCauseTemplateConstant   = "fetch %s failed: %v"
	decodeErrorTemplateConstant       = "decode %s snapshot: %v"
	malformedSCMErrorTemplateConstant = "plugin %s has malformed scm url %q"
)

// FetchError reports a failed remote request.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

// Error describes the failed request.
func (fetchError FetchError) Error() string {
	if fetchError.Cause != nil {
		return fmt.Sprintf(fetchErrorCauseTemplateConstant, fetchError.URL, fetchError.Cause)
	}
	return fmt.Sprintf(fetchErrorStatusTemplateConstant, fetchError.URL, fetchError.StatusCode)
}

// Unwrap exposes the transport failure.
func (fetchError FetchError) Unwrap() error {
	return fetchError.Cause
}

// DecodeError reports a snapshot payload that could not be parsed.
type DecodeError struct {
	Snapshot string
	Cause    error
}

// Error describes the decode failure.
func (decodeError DecodeError) Error() string {
	return fmt.Sprintf(decodeErrorTemplateConstant, decodeError.Snapshot, decodeError.Cause)
}

// Unwrap exposes the parser failure.
func (decodeError DecodeError) Unwrap() error {
	return decodeError.Cause
}

// MalformedSCMError reports an SCM URL from which no repository name can be derived.
type MalformedSCMError struct {
	Plugin string
	SCM    string
}

// Error describes the malformed URL.
func (malformedSCMError MalformedSCMError) Error() string {
	return fmt.Sprintf(malformedSCMErrorTemplateConstant, malformedSCMError.Plugin, malformedSCMError.SCM)
}
