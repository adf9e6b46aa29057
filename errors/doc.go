// Package errors provides standardized error handling patterns for driver
// components.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// Driver agents run an error boundary at the duty-cycle perimeter: any error
// raised while processing a single command, frame, or timer is logged and the
// cycle continues. Classification decides whether the error is merely logged
// (Transient, Invalid) or escalates to agent shutdown (Fatal). Errors raised
// during startup are always fatal to the process.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Receiver", "poll", "read socket")
//	errors.WrapInvalid(err, "Conductor", "onAddPublication", "parse channel")
//	errors.WrapFatal(err, "Driver", "Start", "map admin buffers")
//
// The generic Wrap() function preserves the original error's classification.
//
// # Wire-Level Error Codes
//
// ErrorCode enumerates the codes carried in ERROR_RESPONSE control messages.
// Use NewDriverError to raise a coded error during command validation and
// CodeOf to recover the code when building the response. Errors with no code
// in their chain map to CodeGeneric.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    log.Printf("Component: %s, Class: %s", ce.Component, ce.Class)
//	}
//
// Classification is preserved through error chains built with Wrap.
package errors
