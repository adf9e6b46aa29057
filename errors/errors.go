// Package errors provides standardized error handling patterns for driver
// components. It includes error classification, standard error variables, and
// helper functions for consistent error wrapping across the system, plus the
// wire-level error codes carried in ERROR_RESPONSE control messages.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Agent lifecycle errors
	ErrAlreadyStarted = errors.New("agent already started")
	ErrNotStarted     = errors.New("agent not started")
	ErrAlreadyStopped = errors.New("agent already stopped")
	ErrShuttingDown   = errors.New("agent is shutting down")

	// Channel and endpoint errors
	ErrInvalidChannel     = errors.New("invalid channel URI")
	ErrInvalidDestination = errors.New("invalid destination")
	ErrEndpointUnavailable = errors.New("endpoint unavailable")

	// Buffer errors
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrMessageTooLong       = errors.New("message exceeds maximum length")
	ErrBufferNotPowerOfTwo  = errors.New("buffer capacity not a power of two")

	// Frame and protocol errors
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrDataCorrupted    = errors.New("data corrupted")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Client protocol errors
	ErrDriverTimeout    = errors.New("no response from driver within timeout")
	ErrUnknownSession   = errors.New("unknown session")
	ErrUnknownRegistration = errors.New("unknown registration id")
)

// ErrorCode is the wire-level code carried in ERROR_RESPONSE messages from
// the driver to clients.
type ErrorCode int32

const (
	// CodeGeneric is the catch-all for unclassified failures.
	CodeGeneric ErrorCode = iota
	// CodePublicationChannelAlreadyExists reports a duplicate session/channel
	// pair on ADD_PUBLICATION.
	CodePublicationChannelAlreadyExists
	// CodeInvalidDestination reports an unparseable or unsupported channel URI.
	CodeInvalidDestination
	// CodePublicationChannelUnknown reports a REMOVE_PUBLICATION for a
	// publication the driver does not know.
	CodePublicationChannelUnknown
)

// String returns the protocol name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeGeneric:
		return "GENERIC_ERROR_MESSAGE"
	case CodePublicationChannelAlreadyExists:
		return "PUBLICATION_CHANNEL_ALREADY_EXISTS"
	case CodeInvalidDestination:
		return "INVALID_DESTINATION_IN_PUBLICATION"
	case CodePublicationChannelUnknown:
		return "PUBLICATION_CHANNEL_UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// DriverError is an error that carries a wire-level code so the Conductor can
// map a validation failure onto an ERROR_RESPONSE.
type DriverError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (de *DriverError) Error() string {
	return fmt.Sprintf("%s: %s", de.Code, de.Message)
}

// NewDriverError creates a coded error for an ERROR_RESPONSE.
func NewDriverError(code ErrorCode, format string, args ...any) *DriverError {
	return &DriverError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the wire-level code from an error chain. Errors without a
// DriverError in the chain map to CodeGeneric.
func CodeOf(err error) ErrorCode {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeGeneric
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrEndpointUnavailable) ||
		errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"temporary",
		"unavailable",
		"busy",
		"would block",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrDataCorrupted) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	fatalPatterns := []string{
		"fatal",
		"panic",
		"corrupted",
		"invalid config",
		"missing config",
		"out of memory",
	}

	for _, pattern := range fatalPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	if errors.Is(err, ErrInvalidChannel) ||
		errors.Is(err, ErrInvalidDestination) ||
		errors.Is(err, ErrInvalidFrame) ||
		errors.Is(err, ErrUnknownFrameType) ||
		errors.Is(err, ErrMessageTooLong) {
		return true
	}

	return false
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors so duty cycles keep running
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
