package fbtft

import "errors"

// Error kinds. Errors returned by this package wrap one of these; match them
// with errors.Is.
var (
	// ErrConfigInvalid reports a missing required line, an unusable
	// register/bus width combination, a malformed init program or an
	// out-of-range option.
	ErrConfigInvalid = errors.New("fbtft: invalid configuration")
	// ErrOutOfMemory reports a buffer that could not be sized.
	ErrOutOfMemory = errors.New("fbtft: out of memory")
	// ErrTransport reports a failed bus transfer.
	ErrTransport = errors.New("fbtft: transport error")
	// ErrDeferred reports a dependency that is not available yet; probing
	// may be retried later.
	ErrDeferred = errors.New("fbtft: deferred")
	// ErrNotSupported reports an operation the panel has no hook for.
	ErrNotSupported = errors.New("fbtft: not supported")
	// ErrHalted is returned by every mutating call after Halt.
	ErrHalted = errors.New("fbtft: halted")
)
