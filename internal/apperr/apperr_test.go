package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("chore %d not found", 4), KindNotFound},
		{"forbidden", Forbidden("nope"), KindForbidden},
		{"wrapped by fmt", fmt.Errorf("outer: %w", InvalidState("bad")), KindInvalidState},
		{"plain error", errors.New("boom"), KindInternal},
		{"internal", Internal(errors.New("db"), "save chore"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindValidation, nil, "x") != nil {
		t.Error("expected nil for nil error")
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("disk full")
	err := Internal(base, "save chore")
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to match base")
	}
	if err.Error() != "save chore: disk full" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestMessageHidesInternal(t *testing.T) {
	if got := Message(Internal(errors.New("secret dsn"), "open")); got != "internal error" {
		t.Errorf("Message = %q, want internal error", got)
	}
	if got := Message(Validation("title is required")); got != "title is required" {
		t.Errorf("Message = %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindForbidden:    http.StatusForbidden,
		KindInvalidState: http.StatusConflict,
		KindValidation:   http.StatusBadRequest,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}
