package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/logging"
)

func TestSecurityHeaders(t *testing.T) {
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	app.Use(SecurityHeaders(DefaultSecurityHeaders()))

	app.GET("/", func(ctx *yaade.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	})
	app.GET("/fail", func(*yaade.Context) error {
		return apperr.NotFound("missing", nil)
	})

	for _, path := range []string{"/", "/fail"} {
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s: expected nosniff header", path)
		}
		if rec.Header().Get("X-Frame-Options") != "DENY" {
			t.Fatalf("%s: expected frame options header", path)
		}
		if rec.Header().Get("Content-Security-Policy") == "" {
			t.Fatalf("%s: expected content security policy", path)
		}
	}
}

func TestSecurityHeadersOmitEmpty(t *testing.T) {
	rec, err := runMiddleware(t, SecurityHeaders(SecurityHeadersOptions{DisableNosniff: true, StrictTransportSecurity: "max-age=60"}))
	if err != nil {
		t.Fatalf("middleware error: %v", err)
	}
	if rec.Header().Get("X-Content-Type-Options") != "" {
		t.Fatalf("expected nosniff disabled")
	}
	if rec.Header().Get("X-Frame-Options") != "" {
		t.Fatalf("expected no frame options")
	}
	if rec.Header().Get("Strict-Transport-Security") != "max-age=60" {
		t.Fatalf("expected hsts header")
	}
}

func runMiddleware(t *testing.T, mw yaade.Middleware) (*httptest.ResponseRecorder, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	ctx := yaade.NewContext(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil, app)
	err := mw(func(*yaade.Context) error { return nil })(ctx)
	return rec, err
}
