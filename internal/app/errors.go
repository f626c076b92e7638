package app

import (
	"vodfetch/internal/ports"
)

var ErrNotFound = ports.ErrNotFound

// CodedError lets executors return a stable error code, persisted in
// Job.errorCode.
//
// Example codes: invalid_params, not_found, ambiguous, download_failed,
// mux_failed, io_error.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }
