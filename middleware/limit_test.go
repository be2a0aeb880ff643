package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/logging"
	"github.com/devmarvs/yaade/testutil"
)

func TestBodyLimit(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{name: "within limit", body: `{"a":1}`, status: http.StatusOK},
		{name: "at limit", body: strings.Repeat("x", 16), status: http.StatusOK},
		{name: "over limit", body: strings.Repeat("x", 17), status: http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			app := yaade.New(yaade.WithLogger(logging.Discard()))
			app.Use(BodyLimit(16))
			app.POST("/", func(ctx *yaade.Context) error {
				called = true
				raw, err := ctx.RawBody()
				if err != nil {
					return err
				}
				again, _ := io.ReadAll(ctx.Request.Body)
				if string(raw) != tc.body || string(again) != tc.body {
					t.Errorf("expected body to stay readable")
				}
				return ctx.NoContent(http.StatusOK)
			})

			rec := testutil.Do(t, app, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)))
			testutil.MustStatus(t, rec, tc.status)
			if tc.status != http.StatusOK {
				testutil.DecodeError(t, rec, "payload_too_large")
				if called {
					t.Fatalf("handler must not run for oversized body")
				}
			}
		})
	}
}

func TestRecover(t *testing.T) {
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	app.Use(Recover())
	app.GET("/", func(*yaade.Context) error {
		panic("boom")
	})

	rec := testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.MustStatus(t, rec, http.StatusInternalServerError)
	body := testutil.DecodeError(t, rec, "internal")
	if body.Error.Message != "internal server error" {
		t.Fatalf("expected generic message, got %q", body.Error.Message)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	app.Use(RequestID())
	app.GET("/", func(ctx *yaade.Context) error {
		return ctx.Text(http.StatusOK, ctx.RequestID())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(yaade.RequestIDHeader, "abc-123")
	rec := testutil.Do(t, app, req)
	testutil.MustHeader(t, rec, yaade.RequestIDHeader, "abc-123")

	rec = testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(yaade.RequestIDHeader)
	if generated == "" || rec.Body.String() != generated {
		t.Fatalf("expected generated request id echoed, got %q / %q", generated, rec.Body.String())
	}
}
