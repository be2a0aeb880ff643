package pprof

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/session"
)

func withSession(sess *session.Session) yaade.Middleware {
	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			ctx.SetSession(sess)
			return next(ctx)
		}
	}
}

func TestRegisterRequiresLogin(t *testing.T) {
	anonymous := &session.Session{ID: "anon", Values: map[string]string{}}
	app := yaade.New()
	app.Use(withSession(anonymous))
	if err := Register(app, ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPrefix+"/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterServesProfiles(t *testing.T) {
	sess := &session.Session{ID: "s1", Values: map[string]string{}}
	sess.SetUser("u1", "admin")
	app := yaade.New()
	app.Use(withSession(sess))
	if err := Register(app, "debug/"); err != nil {
		t.Fatalf("register: %v", err)
	}

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/goroutine?debug=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "goroutine") {
		t.Fatalf("expected goroutine profile, got %q", rec.Body.String())
	}
}

func TestRegisterNilApp(t *testing.T) {
	if err := Register(nil, ""); err == nil {
		t.Fatalf("expected error for nil app")
	}
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":              "",
		"debug":         "/debug",
		"/debug/pprof/": "/debug/pprof",
		"/":             "/",
	}
	for in, want := range cases {
		if got := normalizePrefix(in); got != want {
			t.Fatalf("normalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}
