package errs

import "errors"

var InternalError = errors.New("internal error")

var (
	NoEntry          = errors.New("no matching entry")
	BadDescriptor    = errors.New("descriptor is not open")
	NotQuorate       = errors.New("cluster is not quorate")
	InvalidRequest   = errors.New("invalid request")
	TooManySessions  = errors.New("too many open sessions")
	Timeout          = errors.New("timed out")
	StaleVersion     = errors.New("document version is not newer than the current one")
	BadTransaction   = errors.New("unknown or expired update transaction")
	UpdateInProgress = errors.New("an update is already in progress")
)
