package nfc

import (
	"errors"
	"fmt"
)

// FaultCode is the status byte returned by the tag when a command fails.
// The known values form a closed taxonomy; anything else still renders as
// hex instead of failing classification.
type FaultCode byte

const (
	FaultNone                   FaultCode = 0x00
	FaultCommandNotSupported    FaultCode = 0x01
	FaultCommandNotRecognized   FaultCode = 0x02
	FaultOptionNotSupported     FaultCode = 0x03
	FaultUnknown                FaultCode = 0x0F
	FaultBlockNotAvailable      FaultCode = 0x10
	FaultBlockAlreadyLocked     FaultCode = 0x11
	FaultContentCannotBeChanged FaultCode = 0x12
)

// Known reports whether the code is part of the closed taxonomy.
func (f FaultCode) Known() bool {
	switch f {
	case FaultNone, FaultCommandNotSupported, FaultCommandNotRecognized,
		FaultOptionNotSupported, FaultUnknown, FaultBlockNotAvailable,
		FaultBlockAlreadyLocked, FaultContentCannotBeChanged:
		return true
	}
	return false
}

// String returns the human description used in diagnostics.
func (f FaultCode) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultCommandNotSupported:
		return "command not supported"
	case FaultCommandNotRecognized:
		return "command not recognized"
	case FaultOptionNotSupported:
		return "option not supported"
	case FaultUnknown:
		return "unknown"
	case FaultBlockNotAvailable:
		return "block not available"
	case FaultBlockAlreadyLocked:
		return "block already locked"
	case FaultContentCannotBeChanged:
		return "block content cannot be changed"
	default:
		return fmt.Sprintf("unknown code 0x%02x", byte(f))
	}
}

// TagError is the fault reported by the tag for a single transport call.
// Transport implementations return it for tag-level status codes; link
// failures are reported as plain errors.
type TagError struct {
	Status FaultCode
}

// Error implements the error interface
func (e *TagError) Error() string {
	return fmt.Sprintf("tag error 0x%02x: %s", byte(e.Status), e.Status)
}

// ErrorKind classifies a protocol-level failure after local retries have
// been exhausted.
type ErrorKind int

const (
	ErrKindCommandNotSupported ErrorKind = iota
	ErrKindCustomCommand
	ErrKindRead
	ErrKindReadBlocks
	ErrKindWrite
)

// String returns a human label
func (k ErrorKind) String() string {
	switch k {
	case ErrKindCommandNotSupported:
		return "command not supported"
	case ErrKindCustomCommand:
		return "custom command error"
	case ErrKindRead:
		return "read error"
	case ErrKindReadBlocks:
		return "read blocks error"
	case ErrKindWrite:
		return "write error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// ProtocolError wraps the underlying fault of a failed operation together
// with its protocol-level classification. The raw status code is always
// preserved for diagnostics.
type ProtocolError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

// Unwrap returns the underlying error
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ErrCancelled marks a user-initiated cancellation of the proximity
// session. It is not an error condition: callers accept it silently and
// never retry it.
var ErrCancelled = errors.New("session cancelled by user")
