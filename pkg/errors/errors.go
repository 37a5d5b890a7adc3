// Package errors provides structured error handling for Grantline.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes for the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication or attestation failure
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Authorization denied
)

// GrantError is the structured error type for Grantline.
type GrantError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *GrantError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GrantError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for GrantError.
func (e *GrantError) Is(target error) bool {
	var t *GrantError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &GrantError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &GrantError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &GrantError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Session lifecycle errors.
	ErrUnknownSession = &GrantError{
		Code:     "UNKNOWN_SESSION",
		Message:  "session id exceeds the principal's counter or does not exist",
		ExitCode: ExitNotFound,
	}

	ErrSessionNotApproved = &GrantError{
		Code:     "SESSION_NOT_APPROVED",
		Message:  "session has not been approved by the principal",
		ExitCode: ExitPermission,
	}

	// Evaluation denials.
	ErrInvalidTime = &GrantError{
		Code:     "INVALID_TIME",
		Message:  "execution time is outside the session window",
		ExitCode: ExitPermission,
	}

	ErrInvalidAddress = &GrantError{
		Code:     "INVALID_ADDRESS",
		Message:  "recipient or asset does not match the session",
		ExitCode: ExitPermission,
	}

	ErrInvalidAmount = &GrantError{
		Code:     "INVALID_AMOUNT",
		Message:  "amount exceeds remaining quota or does not match the allowed amount",
		ExitCode: ExitPermission,
	}

	// Intent decode errors.
	ErrMalformedIntent = &GrantError{
		Code:     "MALFORMED_INTENT",
		Message:  "execution payload is truncated or malformed",
		ExitCode: ExitInput,
	}

	ErrUnsupportedIntentShape = &GrantError{
		Code:     "UNSUPPORTED_INTENT_SHAPE",
		Message:  "payload does not describe a single token transfer",
		ExitCode: ExitInput,
	}

	// Attestation errors.
	ErrInvalidAttestation = &GrantError{
		Code:     "INVALID_ATTESTATION",
		Message:  "attestation signature does not bind to the principal and intent",
		ExitCode: ExitAuth,
	}

	ErrRateLimited = &GrantError{
		Code:     "RATE_LIMITED",
		Message:  "too many validation attempts for this principal",
		ExitCode: ExitPermission,
	}

	// Keystore errors.
	ErrKeyNotFound = &GrantError{
		Code:     "KEY_NOT_FOUND",
		Message:  "signing key not found",
		ExitCode: ExitNotFound,
	}

	ErrKeyExists = &GrantError{
		Code:     "KEY_EXISTS",
		Message:  "signing key already exists",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &GrantError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	ErrDecryptionFailed = &GrantError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong passphrase or corrupted file",
		ExitCode: ExitAuth,
	}

	// Config errors.
	ErrConfigNotFound = &GrantError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &GrantError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new GrantError with the given code and message.
func New(code, message string) *GrantError {
	return &GrantError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ge *GrantError
	if errors.As(err, &ge) {
		return &GrantError{
			Code:       ge.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ge.Message),
			Details:    ge.Details,
			Suggestion: ge.Suggestion,
			Cause:      err,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GrantError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ge *GrantError
	if errors.As(err, &ge) {
		return &GrantError{
			Code:       ge.Code,
			Message:    ge.Message,
			Details:    details,
			Suggestion: ge.Suggestion,
			Cause:      ge.Cause,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GrantError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ge *GrantError
	if errors.As(err, &ge) {
		return &GrantError{
			Code:       ge.Code,
			Message:    ge.Message,
			Details:    ge.Details,
			Suggestion: suggestion,
			Cause:      ge.Cause,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GrantError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ge *GrantError
	if errors.As(err, &ge) {
		return ge.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ge *GrantError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
