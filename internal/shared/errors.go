package shared

import "errors"

// Configuration errors
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authentication errors. Every failure to produce a token wraps [ErrAuthFailed]; the others narrow the cause.
var (
	ErrAuthFailed     = errors.New("authentication failed")
	ErrKeyDownload    = errors.New("key download failed")
	ErrUnsupportedKey = errors.New("unsupported key format")
)

// Remote API errors
var (
	ErrAPIRequest         = errors.New("API request failed")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Publish transaction errors. A failed step matches [ErrTransactionFailed]; a failed compensating delete
// additionally matches [ErrRollbackFailed].
var (
	ErrTransactionFailed = errors.New("publish transaction failed")
	ErrRollbackFailed    = errors.New("rollback failed")
)

// Local input errors, all raised before any remote call.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFileNotFound    = errors.New("file not found")
)
