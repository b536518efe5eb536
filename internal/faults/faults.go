// Package faults carries the error taxonomy shared by every service in the
// allocation and settlement engine. Each fault has a stable machine-readable
// kind and a human-readable message; callers branch on the kind, never on the
// message text.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable error classification reported to clients.
type Kind string

const (
	KindValidation           Kind = "VALIDATION"
	KindOverAllocation       Kind = "OVER_ALLOCATION"
	KindAllocationMismatch   Kind = "ALLOCATION_MISMATCH"
	KindInsufficientQuantity Kind = "INSUFFICIENT_QUANTITY"
	KindAlreadyReviewed      Kind = "ALREADY_REVIEWED"
	KindAlreadyProcessed     Kind = "ALREADY_PROCESSED"
	KindReassignmentBlocked  Kind = "REASSIGNMENT_BLOCKED"
	KindPermission           Kind = "PERMISSION_DENIED"
	KindKYCLimitExceeded     Kind = "KYC_LIMIT_EXCEEDED"
	KindNotFound             Kind = "NOT_FOUND"
	KindInternal             Kind = "INTERNAL"
)

// Fault is the error type returned across service boundaries.
type Fault struct {
	Kind    Kind
	Message string
	Err     error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Err }

// New builds a fault with no wrapped cause.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Newf builds a fault with a formatted message.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message, Err: err}
}

// Internal wraps an unexpected error (storage failures and the like).
func Internal(err error, message string) *Fault {
	return &Fault{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the kind from any error chain. Non-fault errors report
// KindInternal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// MessageOf extracts the client-facing message from an error chain.
func MessageOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Message
	}
	return "internal error"
}

// HTTPStatus maps a kind to the status code handlers respond with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindOverAllocation, KindAllocationMismatch, KindKYCLimitExceeded:
		return http.StatusBadRequest
	case KindInsufficientQuantity, KindAlreadyReviewed, KindAlreadyProcessed, KindReassignmentBlocked:
		return http.StatusConflict
	case KindPermission:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
