package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", BadRequest("missing field"), http.StatusBadRequest},
		{"not found", NotFound("user not found"), http.StatusNotFound},
		{"conflict", Conflict("duplicate"), http.StatusConflict},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"unauthorized", Unauthorized("who are you"), http.StatusUnauthorized},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped domain error", fmt.Errorf("loading user: %w", NotFound("user not found")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMessageOf_HidesInternalCause(t *testing.T) {
	err := Internal(errors.New("connection refused to 10.0.0.3:27017"))
	if got := MessageOf(err); got != "internal server error" {
		t.Errorf("MessageOf() = %q, want generic message", got)
	}
}

func TestWrap_KeepsStatusAndMessage(t *testing.T) {
	cause := errors.New("E11000 duplicate key")
	err := Conflict("a user is already assigned to this activity").Wrap(cause)

	if err.Status != http.StatusConflict {
		t.Errorf("Status = %d, want %d", err.Status, http.StatusConflict)
	}
	if !errors.Is(err, err) || err.Unwrap() != cause {
		t.Error("expected wrapped cause to be preserved")
	}
	if err.Error() != "a user is already assigned to this activity" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("assign: %w", Conflict("full"))
	if !IsStatus(err, http.StatusConflict) {
		t.Error("IsStatus should see through wrapping")
	}
	if IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus matched wrong status")
	}
}
