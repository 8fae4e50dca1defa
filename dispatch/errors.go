package dispatch

import "fmt"

// Kind classifies an invocation failure. Caller defects are reported
// back over JSON-RPC; upstream defects become structured tool results
// so the client can tell "API is down" from "API rejected the request".
type Kind string

const (
	// KindToolNotFound means the tool name resolves to nothing
	KindToolNotFound Kind = "tool_not_found"

	// KindInvalidArguments means the argument object failed input
	// schema validation or lacked a required path parameter
	KindInvalidArguments Kind = "invalid_arguments"

	// KindUpstreamUnavailable means the target API could not be
	// reached at all (DNS, connect, TLS)
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindUpstreamTimeout means the call exceeded its deadline
	KindUpstreamTimeout Kind = "upstream_timeout"

	// KindRemoteError means the target API answered with a non-2xx
	// status
	KindRemoteError Kind = "remote_error"
)

// Error is a structured invocation failure
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Body    string `json:"body,omitempty"`
}

var _ error = &Error{}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// CallerFault reports whether the failure is a defect of the invoking
// client rather than of the upstream API
func (e *Error) CallerFault() bool {
	return e.Kind == KindToolNotFound || e.Kind == KindInvalidArguments
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
