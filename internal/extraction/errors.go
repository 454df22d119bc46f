package extraction

import "fmt"

// ErrorKind classifies extraction failures. Timeout and Unreachable are
// retryable per the orchestrator's policy; the rest are terminal.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "TIMEOUT"
	KindUnreachable       ErrorKind = "UNREACHABLE"
	KindRemoteRejected    ErrorKind = "REMOTE_REJECTED"
	KindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"
)

// Error is the typed failure returned by the client. Detail carries the
// human-readable diagnostic; Kind is the dispatch mechanism.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("extraction %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("extraction %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator may retry this failure.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindUnreachable
}

func newError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}
