package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError: the playlist document is not recognizable or lists no segments.
// Fatal for the title.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse manifest: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse manifest: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError is a network-level failure for one retrieval. Only transient
// failures are eligible for retry; the classification is made once, here,
// so the scheduler never re-inspects status codes.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.URL, kind, e.Err)
	}
	return fmt.Sprintf("fetch %s (%s): status %d", e.URL, kind, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err allows a retry under scheduler policy.
// Decrypt failures are permanent even when they wrap a transient key fetch.
func IsTransient(err error) bool {
	var de *DecryptError
	if errors.As(err, &de) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

// DecryptError: key unresolvable or cipher unsupported. Never retried.
type DecryptError struct {
	Reason string
	Err    error
}

func (e *DecryptError) Error() string {
	if e.Err != nil {
		return "decrypt: " + e.Reason + ": " + e.Err.Error()
	}
	return "decrypt: " + e.Reason
}

func (e *DecryptError) Unwrap() error { return e.Err }

// NotFoundError: the query matched nothing in the catalog.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no title matches %q", e.Query)
}

// AmbiguousQueryError: the query matched more than one distinct title.
// Candidates holds display names for the caller to print (capped upstream).
type AmbiguousQueryError struct {
	Query      string
	Candidates []string
	Truncated  bool
}

func (e *AmbiguousQueryError) Error() string {
	msg := fmt.Sprintf("query %q matches multiple titles: %s", e.Query, strings.Join(e.Candidates, ", "))
	if e.Truncated {
		msg += ", ..."
	}
	return msg
}

// MuxError: the external container tool failed after a complete assembly.
// Staged data is kept for diagnostics.
type MuxError struct {
	Output string
	Err    error
}

func (e *MuxError) Error() string {
	return fmt.Sprintf("mux %s: %v", e.Output, e.Err)
}

func (e *MuxError) Unwrap() error { return e.Err }
