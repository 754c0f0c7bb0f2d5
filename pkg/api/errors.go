package api

import (
	"errors"
	"fmt"
)

// Graph error codes.
const (
	ErrCodeNoEntryPoint  = "NO_ENTRY_POINT"
	ErrCodeUnknownNode   = "UNKNOWN_NODE"
	ErrCodeDuplicateNode = "DUPLICATE_NODE"
	ErrCodeBadCallable   = "BAD_CALLABLE"
	ErrCodeNoStore       = "NO_STORE"
	ErrCodeUnknownThread = "UNKNOWN_THREAD"
	ErrCodeMaxSteps      = "MAX_STEPS_EXCEEDED"
)

// GraphError reports a construction, validation or run-setup fault.
type GraphError struct {
	Code    string
	Message string
}

func (e *GraphError) Error() string {
	return "grafo: " + e.Message
}

// NewGraphError builds a GraphError with a code and formatted message.
func NewGraphError(code, format string, args ...any) *GraphError {
	return &GraphError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsGraphError reports whether err is a GraphError with the given code.
func IsGraphError(err error, code string) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.Code == code
}

// NodeError wraps a fault raised inside a node callable, tagged with the
// node's name. It is re-raised to the Invoke/Stream caller after the run
// emits its terminal observer events.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("grafo: node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// StateError reports an invariant violation in the state or reducer layer.
type StateError struct {
	Key     string
	Message string
}

func (e *StateError) Error() string {
	if e.Key == "" {
		return "grafo: state: " + e.Message
	}
	return fmt.Sprintf("grafo: state key %q: %s", e.Key, e.Message)
}
