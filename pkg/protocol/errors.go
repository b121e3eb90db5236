package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nodeflow/nodeflow/pkg/models"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConfiguration indicates a node's configuration is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownNodeType indicates no executor is registered for a node type.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrCycleDetected indicates the workflow graph is not acyclic.
	ErrCycleDetected = errors.New("workflow contains a cycle")

	// ErrCredentialNotFound indicates a credential is missing or not owned by the run owner.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrUpstream indicates an external call failed.
	ErrUpstream = errors.New("upstream failure")
)

// Error is a classified engine failure.
type Error struct {
	Kind      error  // One of the Err* kinds above
	NodeID    string // Node that failed, when known
	Message   string // User facing message
	Err       error  // Underlying error
	retryable bool
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind as well as anything in the wrapped chain.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Retryable reports whether a fresh attempt could succeed.
func (e *Error) Retryable() bool {
	return e.retryable
}

// Configuration builds a non-retryable configuration error.
func Configuration(format string, args ...any) *Error {
	return &Error{Kind: ErrConfiguration, Message: fmt.Sprintf(format, args...)}
}

func UnknownNodeType(nodeType models.NodeType) *Error {
	return &Error{Kind: ErrUnknownNodeType, Message: fmt.Sprintf("unknown node type %q", nodeType)}
}

func CycleDetected() *Error {
	return &Error{Kind: ErrCycleDetected}
}

func CredentialNotFound(credentialID string) *Error {
	return &Error{Kind: ErrCredentialNotFound, Message: fmt.Sprintf("credential %q not found", credentialID)}
}

// Upstream wraps a failed external call. Network failures, throttling and server errors
// should be retryable; rejections of the request itself should not.
func Upstream(err error, retryable bool) *Error {
	return &Error{Kind: ErrUpstream, Err: err, retryable: retryable}
}

// AtNode attaches the failing node id to a classified error. Unclassified errors are
// wrapped with the node id in their message and keep their retry semantics.
func AtNode(err error, nodeID string) error {
	if err == nil {
		return nil
	}

	if classified, ok := err.(*Error); ok && classified.NodeID == "" {
		clone := *classified
		clone.NodeID = nodeID

		return &clone
	}

	return fmt.Errorf("node %s: %w", nodeID, err)
}

// IsRetryable reports whether err is worth another attempt. Classified errors carry
// their own answer, cancellation is final and anything else is presumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.retryable
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return true
}

// Message returns the text shown to a workflow owner: the classified message when
// there is one, otherwise the error itself.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var classified *Error
	if errors.As(err, &classified) && classified.Message != "" {
		return classified.Message
	}

	return err.Error()
}

// Detail renders err's wrap chain one layer per line, for the execution error stack.
func Detail(err error) string {
	if err == nil {
		return ""
	}

	var lines []string
	for current := err; current != nil; current = errors.Unwrap(current) {
		var classified *Error
		if errors.As(current, &classified) && classified == current {
			line := fmt.Sprintf("%s (retryable=%t)", classified.Kind, classified.retryable)
			if classified.NodeID != "" {
				line += " at node " + classified.NodeID
			}

			if classified.Message != "" {
				line += ": " + classified.Message
			}

			lines = append(lines, line)

			continue
		}

		lines = append(lines, fmt.Sprintf("%T: %s", current, current.Error()))
	}

	return strings.Join(lines, "\n")
}
