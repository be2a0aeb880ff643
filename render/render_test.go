package render

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNegotiate(t *testing.T) {
	cases := []struct {
		accept string
		want   Format
	}{
		{"", FormatJSON},
		{"*/*", FormatJSON},
		{"application/json", FormatJSON},
		{"text/plain", FormatText},
		{"text/plain;q=0.9, application/json;q=0.5", FormatText},
		{"image/png", FormatText},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.accept != "" {
			req.Header.Set("Accept", tc.accept)
		}
		if got := Negotiate(req); got != tc.want {
			t.Fatalf("accept %q: expected %d, got %d", tc.accept, tc.want, got)
		}
	}
}

func TestJSONEncodeFailureWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := JSON(rec, http.StatusOK, math.Inf(1)); err == nil {
		t.Fatalf("expected encode error")
	}
	if rec.Body.Len() != 0 || rec.Header().Get("Content-Type") != "" {
		t.Fatalf("expected untouched response")
	}
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := JSON(rec, http.StatusCreated, map[string]string{"id": "1"}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if rec.Code != http.StatusCreated || rec.Body.String() != "{\"id\":\"1\"}\n" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
