package agent

// ErrorCode classifies terminal agent failures for the transport boundary.
type ErrorCode string

const (
	ErrorCodeGenerate         ErrorCode = "GENERATE_ERROR"
	ErrorCodeFunctionCall     ErrorCode = "FUNCTION_CALL_ERROR"
	ErrorCodeFunctionNotFound ErrorCode = "FUNCTION_CALL_NOT_FOUND_ERROR"
	ErrorCodeMaxToolHops      ErrorCode = "MAX_TOOL_HOPS_ERROR"
)

// Error is a typed terminal failure of one chat turn.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	// ErrGenerate reports that the model failed to produce a usable
	// candidate.
	ErrGenerate = &Error{Code: ErrorCodeGenerate, Message: "failed to generate content"}
	// ErrFunctionNotFound reports a model call to a tool that is not bound
	// to the agent.
	ErrFunctionNotFound = &Error{Code: ErrorCodeFunctionNotFound, Message: "function not found"}
	// ErrMaxToolHops reports that one turn exceeded the configured tool
	// dispatch bound.
	ErrMaxToolHops = &Error{Code: ErrorCodeMaxToolHops, Message: "too many tool calls in one turn"}
)
