// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages, so the CLI can decide how to present a failure and
// providers can tag what went wrong while scripting an object.
//
// The package supports wrapping underlying errors while maintaining error kind information.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// InvalidConnection indicates a malformed or unknown connection profile.
	InvalidConnection Kind = "invalid_connection"
	// ProviderUnavailable indicates a provider is registered but cannot serve requests.
	ProviderUnavailable Kind = "provider_unavailable"
	// UnsupportedOperation indicates the provider cannot script the object with the requested operation.
	UnsupportedOperation Kind = "unsupported_operation"
	// ObjectNotFound indicates the scripted object does not exist in the catalog.
	ObjectNotFound Kind = "object_not_found"
	// CatalogFailed indicates a catalog query failed.
	CatalogFailed Kind = "catalog_failed"
	// TransportFailed indicates an out-of-process provider could not be reached.
	TransportFailed Kind = "transport_failed"
	// WriteFailed indicates the generated script could not be written to disk.
	WriteFailed Kind = "write_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Is reports whether any error in err's chain is an *E of the given kind.
func Is(err error, kind Kind) bool {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}
