package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", Configuration("STREAM_API_SECRET"), http.StatusServiceUnavailable},
		{"wrapped configuration", fmt.Errorf("issue token: %w", Configuration("STREAM_API_SECRET")), http.StatusServiceUnavailable},
		{"validation", &ValidationError{Fields: []string{"name"}}, http.StatusBadRequest},
		{"provider", &ProviderError{Op: "create call", StatusCode: 500, Message: "boom"}, http.StatusBadGateway},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"session not found", fmt.Errorf("get: %w", ErrSessionNotFound), http.StatusNotFound},
		{"wizard not found", ErrWizardNotFound, http.StatusNotFound},
		{"not host", ErrNotHost, http.StatusForbidden},
		{"transition", ErrInvalidTransition, http.StatusConflict},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &ProviderError{Op: "go live", Message: cause.Error(), Err: cause}
	assert.Equal(t, "provider go live: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)

	err = &ProviderError{Op: "go live", StatusCode: 404, Message: "call not found"}
	assert.Equal(t, "provider go live: status 404: call not found", err.Error())
}

func TestValidationErrorListsFields(t *testing.T) {
	err := &ValidationError{Fields: []string{"name", "date"}}
	assert.Equal(t, "validation: missing required fields: name, date", err.Error())
	assert.True(t, IsValidation(fmt.Errorf("next: %w", err)))
}
