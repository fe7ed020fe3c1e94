package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnreadable        ErrorType = "unreadable"
	ErrorTypeStrategy          ErrorType = "strategy"
	ErrorTypePipeline          ErrorType = "pipeline"
	ErrorTypeEngineUnavailable ErrorType = "engine_unavailable"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConfig            ErrorType = "config"
)

// Sentinel reasons wrapped by DomainError so callers can branch with errors.Is.
var (
	ErrInputMissing       = errors.New("input file missing")
	ErrInputTooLarge      = errors.New("input exceeds size limit")
	ErrFormatMismatch     = errors.New("input does not match declared format")
	ErrUnparseable        = errors.New("input failed format check")
	ErrUnreadableDocument = errors.New("unreadable document")
	ErrEngineUnavailable  = errors.New("conversion engine unavailable")
	ErrEngineTimeout      = errors.New("conversion engine timed out")
	ErrNotFound           = errors.New("not found")
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func UnreadableError(message string, err error) *DomainError {
	if err == nil {
		err = ErrUnreadableDocument
	}
	return NewError(ErrorTypeUnreadable, message, err)
}

func StrategyError(message string, err error) *DomainError {
	return NewError(ErrorTypeStrategy, message, err)
}

func EngineUnavailableError(message string, err error) *DomainError {
	if err == nil {
		err = ErrEngineUnavailable
	}
	return NewError(ErrorTypeEngineUnavailable, message, err)
}

func StorageError(message string, err error) *DomainError {
	return NewError(ErrorTypeStorage, message, err)
}

func NotFoundError(message string) *DomainError {
	return NewError(ErrorTypeNotFound, message, ErrNotFound)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsClientError reports whether err should be surfaced as a 4xx to the caller.
func IsClientError(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeValidation, ErrorTypeUnreadable, ErrorTypePipeline:
		return true
	}
	return false
}

// Reason returns the human-readable message of a DomainError without its type prefix.
func Reason(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
