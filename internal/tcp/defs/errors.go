package defs

import (
	"errors"
	"fmt"

	"gitlab.com/ccsd.net/internal/static/errs"
)

// ErrorCode is the value carried in the comm_error slot of a response
type ErrorCode int32

// Error code constants. Zero is success; failures are negative.
const (
	ErrCodeNone             ErrorCode = 0
	ErrCodeInternal         ErrorCode = -1
	ErrCodeNoEntry          ErrorCode = -2
	ErrCodeBadDescriptor    ErrorCode = -3
	ErrCodeNotQuorate       ErrorCode = -4
	ErrCodeInvalidRequest   ErrorCode = -5
	ErrCodeTooManySessions  ErrorCode = -6
	ErrCodeTimeout          ErrorCode = -7
	ErrCodeStaleVersion     ErrorCode = -8
	ErrCodeBadTransaction   ErrorCode = -9
	ErrCodeUpdateInProgress ErrorCode = -10
)

var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{errs.NoEntry, ErrCodeNoEntry},
	{errs.BadDescriptor, ErrCodeBadDescriptor},
	{errs.NotQuorate, ErrCodeNotQuorate},
	{errs.InvalidRequest, ErrCodeInvalidRequest},
	{errs.TooManySessions, ErrCodeTooManySessions},
	{errs.Timeout, ErrCodeTimeout},
	{errs.StaleVersion, ErrCodeStaleVersion},
	{errs.BadTransaction, ErrCodeBadTransaction},
	{errs.UpdateInProgress, ErrCodeUpdateInProgress},
	{errs.InternalError, ErrCodeInternal},
}

// ErrorCodeText returns the text representation of an error code.
func ErrorCodeText(code ErrorCode) string {
	switch code {
	case ErrCodeNone:
		return "OK"
	case ErrCodeInternal:
		return "Internal"
	case ErrCodeNoEntry:
		return "NoEntry"
	case ErrCodeBadDescriptor:
		return "BadDescriptor"
	case ErrCodeNotQuorate:
		return "NotQuorate"
	case ErrCodeInvalidRequest:
		return "InvalidRequest"
	case ErrCodeTooManySessions:
		return "TooManySessions"
	case ErrCodeTimeout:
		return "Timeout"
	case ErrCodeStaleVersion:
		return "StaleVersion"
	case ErrCodeBadTransaction:
		return "BadTransaction"
	case ErrCodeUpdateInProgress:
		return "UpdateInProgress"
	default:
		return fmt.Sprintf("ErrorCode<%d>", int32(code))
	}
}

// Sentinel returns the service error matching code, or nil for success and
// unknown codes.
func (code ErrorCode) Sentinel() error {
	for _, sc := range sentinelCodes {
		if sc.code == code {
			return sc.err
		}
	}
	return nil
}

// ErrorCodeOf returns the wire code for err. Nil maps to ErrCodeNone, a *CommError
// to its own code, known sentinels to their code and anything else to ErrCodeInternal.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeNone
	}
	var ce *CommError
	if errors.As(err, &ce) {
		return ce.Code
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return ErrCodeInternal
}

// CommError is a non-zero comm_error received in a response.
type CommError struct {
	Code ErrorCode
	Text string
}

// NewCommError returns a new instance of CommError.
func NewCommError(code ErrorCode, text string) *CommError {
	return &CommError{Code: code, Text: text}
}

func (e *CommError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("CommError(%s)", ErrorCodeText(e.Code))
	}
	return fmt.Sprintf("CommError(%s, %q)", ErrorCodeText(e.Code), e.Text)
}

// Unwrap lets errors.Is match a CommError against the service sentinel for its code.
func (e *CommError) Unwrap() error {
	return e.Code.Sentinel()
}
