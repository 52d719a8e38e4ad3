// Package errs holds the error taxonomy shared by handlers, the wizard and live sessions.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when a webinar id is absent from the registry.
	ErrNotFound = errors.New("webinar not found")
	// ErrNotHost is returned when a viewer session invokes a host-only control.
	ErrNotHost = errors.New("only the host can control the broadcast")
	// ErrSessionNotFound is returned for unknown or already closed live sessions.
	ErrSessionNotFound = errors.New("live session not found")
	// ErrWizardNotFound is returned for unknown or closed creation wizards.
	ErrWizardNotFound = errors.New("wizard not found")
	// ErrInvalidTransition is returned when a state machine is asked for a move it does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ConfigurationError reports a missing credential or setting. It is fatal to the operation
// attempted, never to the process.
type ConfigurationError struct {
	Setting string
	Msg     string
}

func (e *ConfigurationError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("configuration: %s is not configured", e.Setting)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Msg)
}

// Configuration builds a ConfigurationError for the given environment variable(s).
func Configuration(setting string) error {
	return &ConfigurationError{Setting: setting}
}

// ValidationError lists required fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation: missing required fields: " + strings.Join(e.Fields, ", ")
}

// ProviderError carries the video provider's status code and message. StatusCode is 0 when the
// request never produced a response (transport failure).
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("provider %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsProvider reports whether err is (or wraps) a ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsConfiguration(err):
		return http.StatusServiceUnavailable
	case IsValidation(err):
		return http.StatusBadRequest
	case IsProvider(err):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrWizardNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
