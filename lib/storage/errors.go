package storage

import "fmt"

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

// RetCode classifies per-operation failures. The core applies no implicit
// retry - the code is surfaced to the caller, and retry policy belongs to
// the calling layer.
type RetCode int

const (
	RetCInternalError RetCode = iota + 1
	RetCBadConfig
	RetCRecordTooBig
	RetCDeviceOverloaded
	RetCOutOfSpace
	RetCDescriptorClosed
	RetCNotFound
	RetCIO
)

func (c RetCode) String() string {
	switch c {
	case RetCInternalError:
		return "InternalError"
	case RetCBadConfig:
		return "BadConfig"
	case RetCRecordTooBig:
		return "RecordTooBig"
	case RetCDeviceOverloaded:
		return "DeviceOverloaded"
	case RetCOutOfSpace:
		return "OutOfSpace"
	case RetCDescriptorClosed:
		return "DescriptorClosed"
	case RetCNotFound:
		return "NotFound"
	case RetCIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StorageError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new storage Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// CodeOf extracts the RetCode from an error, or RetCInternalError if the
// error did not originate in this package.
func CodeOf(err error) RetCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return RetCInternalError
}
