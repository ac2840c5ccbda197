package space

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes space errors.
type ErrorCode string

const (
	// ErrCodeDuplicateName indicates a dimension or variable name is already taken.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeInvalidName indicates an empty name or one ending with a dot.
	ErrCodeInvalidName ErrorCode = "INVALID_NAME"

	// ErrCodeInvalidIdentity indicates an identity size outside 1..64.
	ErrCodeInvalidIdentity ErrorCode = "INVALID_IDENTITY"

	// ErrCodeInvalidDistribution indicates distribution parameters violate their invariants.
	ErrCodeInvalidDistribution ErrorCode = "INVALID_DISTRIBUTION"

	// ErrCodeInvalidQuantization indicates quantization could never produce a valid value.
	ErrCodeInvalidQuantization ErrorCode = "INVALID_QUANTIZATION"

	// ErrCodeUnknownReference indicates a condition names no dimension or variable.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeCycle indicates dimensions whose activation depends on themselves.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeMixedActivation indicates EnableIf and EnableIfAny on one dimension.
	ErrCodeMixedActivation ErrorCode = "MIXED_ACTIVATION"

	// ErrCodeForbidScope indicates a forbid expression references another dimension.
	ErrCodeForbidScope ErrorCode = "FORBID_SCOPE"

	// ErrCodeFrozen indicates a mutation after the first sampling call.
	ErrCodeFrozen ErrorCode = "FROZEN"

	// ErrCodeUnresolved indicates dimensions still pending after a sweep made no progress.
	ErrCodeUnresolved ErrorCode = "UNRESOLVED"

	// ErrCodeMissingVariable indicates a declared variable was not supplied.
	ErrCodeMissingVariable ErrorCode = "MISSING_VARIABLE"

	// ErrCodeInvalidCondition indicates a malformed condition or literal.
	ErrCodeInvalidCondition ErrorCode = "INVALID_CONDITION"

	// ErrCodeInvalidOption indicates a bad sampling option or variable value.
	ErrCodeInvalidOption ErrorCode = "INVALID_OPTION"

	// ErrCodeRetryExhausted indicates every candidate in the retry budget was forbidden.
	ErrCodeRetryExhausted ErrorCode = "RETRY_EXHAUSTED"
)

// ConfigurationError reports an invalid space definition.
//
// Configuration errors surface at construction, at validation before the
// first sample, or when sampling finds dimensions it can never resolve.
type ConfigurationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Dimension names the offending dimension, when there is one.
	Dimension string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("%s: %s (dimension=%s)", e.Code, e.Message, e.Dimension)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SamplingError reports that a dimension could not produce an allowed value.
type SamplingError struct {
	Dimension string
	Attempts  int
}

// Error implements the error interface.
func (e *SamplingError) Error() string {
	return fmt.Sprintf("%s: every candidate for %q was forbidden after %d attempts",
		ErrCodeRetryExhausted, e.Dimension, e.Attempts)
}

// SerializationError reports a malformed document.
// Path names the offending field, e.g. space["optimizer.lr"].lower.
type SerializationError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("serialization: %v", e.Err)
	}
	return fmt.Sprintf("serialization: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError returns true if the error is a ConfigurationError.
// Uses errors.As to handle wrapped errors.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsSamplingError returns true if the error is a SamplingError.
func IsSamplingError(err error) bool {
	var se *SamplingError
	return errors.As(err, &se)
}

// IsSerializationError returns true if the error is a SerializationError.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

// ErrorCodeOf returns the code of a ConfigurationError or SamplingError,
// or "" for any other error.
func ErrorCodeOf(err error) ErrorCode {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if IsSamplingError(err) {
		return ErrCodeRetryExhausted
	}
	return ""
}

func configErr(code ErrorCode, dimension, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Dimension: dimension,
	}
}

// NewFrozenError creates a ConfigurationError for a mutation after freezing.
func NewFrozenError(dimension string) *ConfigurationError {
	return configErr(ErrCodeFrozen, dimension, "space is frozen after the first sample")
}

// NewUnknownReferenceError creates a ConfigurationError for a condition that
// names an undeclared dimension or variable.
func NewUnknownReferenceError(dimension, ref string) *ConfigurationError {
	return configErr(ErrCodeUnknownReference, dimension, "condition references unknown name %q", ref)
}

// NewCycleError creates a ConfigurationError for an activation cycle.
func NewCycleError(paths []string) *ConfigurationError {
	return configErr(ErrCodeCycle, "", "activation conditions form a cycle: %s", strings.Join(paths, "; "))
}

// NewUnresolvedError creates a ConfigurationError for dimensions that could
// neither be activated nor deactivated.
func NewUnresolvedError(pending []string) *ConfigurationError {
	return configErr(ErrCodeUnresolved, pending[0], "dimensions could not be resolved: %s", strings.Join(pending, ", "))
}

// NewMissingVariableError creates a ConfigurationError for an unsupplied variable.
func NewMissingVariableError(name string) *ConfigurationError {
	return configErr(ErrCodeMissingVariable, "", "variable %q was not supplied", name)
}
