package formula

import (
	"errors"
	"fmt"
)

// ErrorCode classifies formula evaluation failures
type ErrorCode uint8

const (
	ErrorCodeSyntax      ErrorCode = 1 // malformed expression
	ErrorCodeName        ErrorCode = 2 // reference to a name missing from the context
	ErrorCodeNotCallable ErrorCode = 3 // call of a constant or variable
	ErrorCodeNotValue    ErrorCode = 4 // function used as a number
	ErrorCodeArity       ErrorCode = 5 // wrong number of arguments
	ErrorCodeNonFinite   ErrorCode = 6 // NaN or Infinity under the strict policy
	ErrorCodeDepth       ErrorCode = 7 // expression nested too deeply
	ErrorCodeEmpty       ErrorCode = 8 // nothing to evaluate
	ErrorCodeOther       ErrorCode = 9 // all other errors
)

// ErrorMapper maps error codes to the error class names shown to users
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeSyntax:      "SyntaxError",
	ErrorCodeName:        "ReferenceError",
	ErrorCodeNotCallable: "TypeError",
	ErrorCodeNotValue:    "TypeError",
	ErrorCodeArity:       "TypeError",
	ErrorCodeNonFinite:   "RangeError",
	ErrorCodeDepth:       "RangeError",
	ErrorCodeEmpty:       "EmptyExpression",
	ErrorCodeOther:       "Error",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// EvalError is a failure while compiling or running a formula. Pos is the
// rune offset into the normalized expression, or -1 if unknown.
type EvalError struct {
	Code    ErrorCode
	Message string
	Pos     int
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.Code]
}

func NewEvalError(code ErrorCode, message string, pos int) *EvalError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &EvalError{
		Code:    code,
		Message: message,
		Pos:     pos,
	}
}

// errorCodeOf extracts the code of an *EvalError anywhere in err's chain
func errorCodeOf(err error) ErrorCode {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Code
	}
	return ErrorCodeOther
}

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, e.g. a
	// malformed share parameter.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a formula row or a
	// variable) was not found.
	NotFound AppErrorCode = 5

	// FailedPrecondition indicates operation was rejected because the
	// sheet is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9
)

// AppError represents errors at the application level (not formula
// evaluation errors)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}
