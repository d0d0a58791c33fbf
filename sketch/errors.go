package sketch

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType string

const (
	ErrDecode   ErrorType = "decode_error"
	ErrValidate ErrorType = "validation_error"
	ErrConvert  ErrorType = "conversion_error"
)

// ErrNotImplemented signals that an export target or interchange grammar is
// not supported by the engine it was asked of.
var ErrNotImplemented = errors.New("not implemented")

// EngineError wraps decoding/validation/conversion issues with context and type.
type EngineError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error { return e.Err }

// ValidationDetail provides structured validation info for one finding.
type ValidationDetail struct {
	Scope   string // "node", "edge", "element"
	Field   string
	Message string
}

// ValidationError groups structural problems found in diagram content.
type ValidationError struct {
	Issues  []string
	Details []ValidationDetail
}

func (v *ValidationError) Error() string {
	return "sketch validation failed: " + strings.Join(v.Issues, "; ")
}

func decodeError(msg string, err error) *EngineError {
	return &EngineError{Type: ErrDecode, Message: msg, Err: err}
}
