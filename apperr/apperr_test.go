package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	base := Conflict("collection changed", errors.New("version 3 != 2"))
	wrapped := fmt.Errorf("put collection: %w", base)

	got := As(wrapped)
	if got == nil {
		t.Fatalf("expected app error")
	}
	if got.Status != http.StatusConflict || got.Code != CodeConflict {
		t.Fatalf("unexpected error %+v", got)
	}
	if As(errors.New("plain")) != nil {
		t.Fatalf("expected nil for plain error")
	}
	if As(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestWithDetailsCopies(t *testing.T) {
	base := Validation("request does not match operation", nil)
	detailed := base.WithDetails("body: property \"username\" is missing")

	if base.Details != "" {
		t.Fatalf("expected original untouched")
	}
	if detailed.Details == "" || detailed.Status != http.StatusBadRequest {
		t.Fatalf("unexpected detailed error %+v", detailed)
	}
}

func TestStatuses(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Validation("v", nil), http.StatusBadRequest},
		{Unauthorized("u", nil), http.StatusUnauthorized},
		{NotFound("n", nil), http.StatusNotFound},
		{NotImplemented("x"), http.StatusNotImplemented},
		{MethodNotAllowed("m"), http.StatusMethodNotAllowed},
		{PayloadTooLarge("p", nil), http.StatusRequestEntityTooLarge},
		{Internal("i", nil), http.StatusInternalServerError},
		{Unavailable("s"), http.StatusServiceUnavailable},
		{ClientClosed("c", nil), StatusClientClosedRequest},
	}
	for _, tc := range cases {
		if tc.err.Status != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.err.Code, tc.status, tc.err.Status)
		}
	}
}
