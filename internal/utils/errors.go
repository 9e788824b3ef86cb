package utils

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the forecasting core. Match them with errors.Is.
var (
	// ErrConfiguration marks an invalid parameter combination supplied by the caller.
	ErrConfiguration = errors.New("configuration error")
	// ErrContractViolation marks malformed input data or a model/feature wiring defect.
	ErrContractViolation = errors.New("contract violation")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// ConfigurationError reports a rejected parameter combination.
func ConfigurationError(op, format string, args ...any) error {
	return &AppError{Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrConfiguration}
}

// ContractViolationError reports input that breaks the data or model contract.
func ContractViolationError(op, format string, args ...any) error {
	return &AppError{Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrContractViolation}
}

// IsConfiguration reports whether err carries ErrConfiguration.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsContractViolation reports whether err carries ErrContractViolation.
func IsContractViolation(err error) bool { return errors.Is(err, ErrContractViolation) }
