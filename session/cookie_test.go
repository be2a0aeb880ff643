package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetAndClearCookie(t *testing.T) {
	options := DefaultCookieOptions(30 * time.Minute)

	rec := httptest.NewRecorder()
	SetCookie(rec, "abc", options)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != DefaultCookieName || cookie.Value != "abc" || cookie.Path != "/" {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode || cookie.MaxAge != 1800 {
		t.Fatalf("unexpected cookie attributes %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	if got := CookieValue(req, options); got != "abc" {
		t.Fatalf("expected cookie value, got %q", got)
	}

	rec = httptest.NewRecorder()
	ClearCookie(rec, options)
	cleared := rec.Result().Cookies()[0]
	if cleared.MaxAge >= 0 || cleared.Value != "" {
		t.Fatalf("expected expired cookie, got %+v", cleared)
	}
}

func TestCookieValueMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := CookieValue(req, CookieOptions{}); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}
}

func TestClearCookieReplacesQueuedSessionCookie(t *testing.T) {
	options := DefaultCookieOptions(time.Minute)
	rec := httptest.NewRecorder()
	http.SetCookie(rec, &http.Cookie{Name: "other", Value: "keep"})
	SetCookie(rec, "abc", options)
	ClearCookie(rec, options)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected two cookies, got %d", len(cookies))
	}
	if cookies[0].Name != "other" || cookies[1].Name != DefaultCookieName || cookies[1].MaxAge >= 0 {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}
