package yaade

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/yaade/apperr"
)

func TestContextBodyStages(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"c","version":2}`))
	ctx := NewContext(httptest.NewRecorder(), req, nil, newTestApp())

	raw, err := ctx.RawBody()
	if err != nil || string(raw) != `{"name":"c","version":2}` {
		t.Fatalf("raw body: %q %v", raw, err)
	}

	body, err := ctx.Body()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	object, ok := body.(map[string]any)
	if !ok || object["name"] != "c" {
		t.Fatalf("unexpected parsed body %#v", body)
	}

	var dst struct {
		Name    string `json:"name"`
		Version int64  `json:"version"`
	}
	if err := ctx.BindJSON(&dst); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if dst.Name != "c" || dst.Version != 2 {
		t.Fatalf("unexpected bind %+v", dst)
	}

	again, _ := io.ReadAll(ctx.Request.Body)
	if string(again) != string(raw) {
		t.Fatalf("request body should stay readable, got %q", again)
	}
}

func TestContextEmptyBody(t *testing.T) {
	ctx := NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), nil, newTestApp())
	body, err := ctx.Body()
	if err != nil || body != nil {
		t.Fatalf("expected nil body, got %#v %v", body, err)
	}
}

func TestContextBodyErrors(t *testing.T) {
	ctx := NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}{"b":2}`)), nil, newTestApp())
	var dst map[string]int
	if appErr := apperr.As(ctx.BindJSON(&dst)); appErr == nil || appErr.Code != apperr.CodeBadRequest {
		t.Fatalf("expected bad request for trailing JSON, got %v", appErr)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64)))
	req.Body = http.MaxBytesReader(rec, req.Body, 8)
	ctx = NewContext(rec, req, nil, newTestApp())
	_, err := ctx.RawBody()
	appErr := apperr.As(err)
	if appErr == nil || appErr.Status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		t.Fatalf("expected MaxBytesError cause")
	}
}
