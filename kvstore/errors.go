package kvstore

import "fmt"

// RetCode enumerates the error taxonomy the KvStore core surfaces. It
// mirrors the teacher's store.RetCode / store.Error shape, generalized
// from a single "unsupported operation" code to the full set of kinds
// the replication core distinguishes.
type RetCode uint8

const (
	// RetCSuccess is the zero value; never carried by a non-nil Error.
	RetCSuccess RetCode = iota
	// RetCInvalidConfig means a config gate check failed; fatal at startup.
	RetCInvalidConfig
	// RetCInvalidRequest means malformed RPC fields, unknown area, or an
	// empty key; surfaced to the caller, non-fatal to the Store.
	RetCInvalidRequest
	// RetCOutOfRange means a numeric option is outside its allowed bounds.
	RetCOutOfRange
	// RetCRejectedValue means merge dropped the value (old version, bad
	// TTL, filter mismatch).
	RetCRejectedValue
	// RetCPeerUnreachable means the peer session entered Backoff.
	RetCPeerUnreachable
	// RetCSyncTimeout means full-sync did not complete within its deadline.
	RetCSyncTimeout
	// RetCCancelled means in-flight work was cancelled by shutdown.
	RetCCancelled
	// RetCInternal means an invariant was violated (e.g. stored hash
	// mismatch).
	RetCInternal
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidConfig:
		return "InvalidConfig"
	case RetCInvalidRequest:
		return "InvalidRequest"
	case RetCOutOfRange:
		return "OutOfRange"
	case RetCRejectedValue:
		return "RejectedValue"
	case RetCPeerUnreachable:
		return "PeerUnreachable"
	case RetCSyncTimeout:
		return "SyncTimeout"
	case RetCCancelled:
		return "Cancelled"
	case RetCInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every kvstore operation that can
// fail. It carries a RetCode so callers can branch on error kind instead
// of parsing messages.
type Error struct {
	Code  RetCode
	Msg   string
	Field string // offending field, if applicable (config/RPC errors)
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("kvstore error (%s): %s [field=%s]", e.Code, e.Msg, e.Field)
	}
	return fmt.Sprintf("kvstore error (%s): %s", e.Code, e.Msg)
}

// NewError creates a new *Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// NewFieldError creates a new *Error naming the offending field, used by
// the config gate to point at the exact violated constraint.
func NewFieldError(code RetCode, field, msg string) *Error {
	return &Error{Code: code, Msg: msg, Field: field}
}

// CodeOf extracts the RetCode from err, or RetCInternal if err is not a
// *Error.
func CodeOf(err error) RetCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	if err == nil {
		return RetCSuccess
	}
	return RetCInternal
}
