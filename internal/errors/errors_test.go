package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: bad surge", ErrValidation), http.StatusBadRequest, "validation_error"},
		{"not found", fmt.Errorf("%w: rider r1", ErrNotFound), http.StatusNotFound, "not_found"},
		{"transition", fmt.Errorf("%w: COMPLETED -> REQUESTED", ErrInvalidTransition), http.StatusConflict, "invalid_transition"},
		{"api error passthrough", BadRequest("invalid body"), http.StatusBadRequest, "bad_request"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.StatusCode != tt.wantStatus || got.Code != tt.wantCode {
				t.Fatalf("FromError() = %d/%s, want %d/%s", got.StatusCode, got.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
