// Package errorsx defines the error kinds shared by the control loop and its collaborators.
package errorsx

import (
	"errors"
	"fmt"
)

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonToolExecution ReasonCode = "tool_execution"
	ReasonMalformedCall ReasonCode = "malformed_tool_call"
	ReasonModelUnavail  ReasonCode = "model_unavailable"
	ReasonUnboundedLoop ReasonCode = "unbounded_tool_loop"
)

// ToolExecutionError reports a tool invocation that failed in transport or in the tool itself.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MalformedToolCallError reports a call naming an unknown tool or carrying invalid arguments.
type MalformedToolCallError struct {
	Tool   string
	Reason string
}

func (e *MalformedToolCallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("malformed call to %s: %s", e.Tool, e.Reason)
}

// ModelUnavailableError reports that the model client could not produce a response.
type ModelUnavailableError struct {
	Err error
}

func (e *ModelUnavailableError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("model unavailable: %v", e.Err)
}

func (e *ModelUnavailableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnboundedToolLoopError reports that the model kept requesting tools past the turn ceiling.
type UnboundedToolLoopError struct {
	Limit int
}

func (e *UnboundedToolLoopError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("model requested tools for %d consecutive turns without a final reply", e.Limit)
}

// Reason maps an error to its reason code.
func Reason(err error) ReasonCode {
	var (
		toolErr      *ToolExecutionError
		malformedErr *MalformedToolCallError
		modelErr     *ModelUnavailableError
		loopErr      *UnboundedToolLoopError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &malformedErr):
		return ReasonMalformedCall
	case errors.As(err, &toolErr):
		return ReasonToolExecution
	case errors.As(err, &modelErr):
		return ReasonModelUnavail
	case errors.As(err, &loopErr):
		return ReasonUnboundedLoop
	default:
		return ReasonUnknown
	}
}

// IsFatal reports whether err must halt the control loop.
func IsFatal(err error) bool {
	switch Reason(err) {
	case "", ReasonToolExecution, ReasonMalformedCall:
		return false
	default:
		return true
	}
}
