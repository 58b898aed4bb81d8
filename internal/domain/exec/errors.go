package exec

import (
	"context"
	"errors"

	"github.com/toolgate/toolgate/internal/domain/schema"
	"github.com/toolgate/toolgate/internal/domain/tool"
)

// Reserved wire error codes. This is a closed set: new top-level codes
// require a wire-contract version bump.
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeToolNotFound   = "TOOL_NOT_FOUND"
	CodePolicyDenied   = "POLICY_DENIED"
	CodeExecutionError = "EXECUTION_ERROR"
	CodeTimeout        = "TIMEOUT"
)

// WireError is the error object serialized to the transport. Message never
// carries internal stack detail; that stays on the hook path.
type WireError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e WireError) Error() string { return e.Code + ": " + e.Message }

// DeniedError carries a policy deny reason through the failure path.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return "policy denied: " + e.Reason }

// OutputContractError marks a contract violation on the handler's output.
// It deliberately does not unwrap to the schema violation sentinel:
// handler-side violations are EXECUTION_ERROR on the wire, never
// INVALID_INPUT.
type OutputContractError struct {
	Cause error
}

func (e *OutputContractError) Error() string { return "output contract violation: " + e.Cause.Error() }

// MapError converts an internal failure cause into the reserved wire
// taxonomy. Pure function; caller-fault failures keep their safe detail,
// runtime faults are reduced to a generic message.
func MapError(err error) WireError {
	var denied *DeniedError
	var output *OutputContractError
	var violation *schema.ViolationError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WireError{Code: CodeTimeout, Message: "tool execution timed out"}
	case errors.Is(err, tool.ErrNotFound):
		return WireError{Code: CodeToolNotFound, Message: "tool not found"}
	case errors.As(err, &denied):
		return WireError{Code: CodePolicyDenied, Message: denied.Reason}
	case errors.As(err, &output):
		return WireError{Code: CodeExecutionError, Message: "tool execution failed"}
	case errors.As(err, &violation):
		// Caller fault: the violation list is derived from the declared
		// contract, so it is safe to return.
		return WireError{Code: CodeInvalidInput, Message: violation.Error()}
	default:
		return WireError{Code: CodeExecutionError, Message: "tool execution failed"}
	}
}
