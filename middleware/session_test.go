package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/logging"
	"github.com/devmarvs/yaade/session"
	"github.com/devmarvs/yaade/testutil"
)

func newSessionApp(store session.Store) (*yaade.App, *[]string) {
	seen := &[]string{}
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	app.Use(Session(store, session.DefaultCookieOptions(time.Hour)))
	app.GET("/", func(ctx *yaade.Context) error {
		sess := ctx.Session()
		if sess == nil {
			return apperr.Internal("no session", nil)
		}
		*seen = append(*seen, sess.ID)
		return ctx.NoContent(http.StatusNoContent)
	})
	return app, seen
}

func TestSessionCreatesAndReuses(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	app, seen := newSessionApp(store)

	first := testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.MustStatus(t, first, http.StatusNoContent)
	cookie := testutil.MustCookie(t, first, session.DefaultCookieName)
	if !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	second := testutil.Do(t, app, req)
	testutil.MustStatus(t, second, http.StatusNoContent)

	if (*seen)[0] != (*seen)[1] {
		t.Fatalf("expected the cookie to select the same session")
	}
	if got := testutil.MustCookie(t, second, session.DefaultCookieName).Value; got != cookie.Value {
		t.Fatalf("expected cookie to be re-sent, got %q", got)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", store.Len())
	}
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	app, seen := newSessionApp(store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "forged"})
	rec := testutil.Do(t, app, req)
	testutil.MustStatus(t, rec, http.StatusNoContent)

	if (*seen)[0] == "forged" {
		t.Fatalf("expected a new session id")
	}
	if got := testutil.MustCookie(t, rec, session.DefaultCookieName).Value; got != (*seen)[0] {
		t.Fatalf("expected cookie for the new session, got %q", got)
	}
}

func TestSessionExpiredCookieStartsFresh(t *testing.T) {
	now := time.Now()
	store := session.NewMemoryStore(time.Minute, session.WithClock(func() time.Time { return now }))
	app, seen := newSessionApp(store)

	first := testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := testutil.MustCookie(t, first, session.DefaultCookieName)

	now = now.Add(2 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	testutil.Do(t, app, req)

	if (*seen)[0] == (*seen)[1] {
		t.Fatalf("expected expired session to be replaced")
	}
}

type failingStore struct {
	session.Store
}

func (failingStore) Load(context.Context, string) (*session.Session, error) {
	return nil, errors.New("backend down")
}

func TestSessionBackendFailure(t *testing.T) {
	app, seen := newSessionApp(failingStore{Store: session.NewMemoryStore(time.Hour)})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "abc"})
	rec := testutil.Do(t, app, req)

	testutil.MustStatus(t, rec, http.StatusInternalServerError)
	testutil.DecodeError(t, rec, "internal")
	if len(*seen) != 0 {
		t.Fatalf("handler must not run without a session")
	}
}

func TestSessionSkipPath(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	app := yaade.New(yaade.WithLogger(logging.Discard()))
	app.Use(SessionWithOptions(SessionOptions{Store: store, SkipPaths: []string{"/metrics"}}))
	app.GET("/metrics", func(ctx *yaade.Context) error {
		if ctx.Session() != nil {
			t.Errorf("expected no session on skipped path")
		}
		return ctx.NoContent(http.StatusOK)
	})

	rec := testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if testutil.CookieFrom(rec, session.DefaultCookieName) != nil {
		t.Fatalf("expected no cookie on skipped path")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no stored session, got %d", store.Len())
	}
}
