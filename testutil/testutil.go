package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/router"
)

// Do executes a request against a handler.
func Do(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// MustStatus asserts the response status code.
func MustStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d (body %q)", status, rec.Code, rec.Body.String())
	}
}

// MustHeader asserts a response header value.
func MustHeader(t *testing.T, rec *httptest.ResponseRecorder, key, value string) {
	t.Helper()
	if got := rec.Header().Get(key); got != value {
		t.Fatalf("expected header %s=%q, got %q", key, value, got)
	}
}

// DecodeJSON decodes a JSON response into dst.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

// ErrorBody is the decoded failure envelope.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// DecodeError decodes a failure envelope and asserts its code.
func DecodeError(t *testing.T, rec *httptest.ResponseRecorder, code string) ErrorBody {
	t.Helper()
	var body ErrorBody
	DecodeJSON(t, rec, &body)
	if body.Error.Code != code {
		t.Fatalf("expected error code %q, got %q (%s)", code, body.Error.Code, body.Error.Message)
	}
	return body
}

// CookieFrom returns the named cookie set by a response, or nil.
func CookieFrom(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// MustCookie returns the named cookie set by a response.
func MustCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	cookie := CookieFrom(rec, name)
	if cookie == nil {
		t.Fatalf("expected cookie %s", name)
	}
	return cookie
}

// RunMiddleware executes middleware with a handler and request.
func RunMiddleware(t *testing.T, middleware []yaade.Middleware, handler yaade.Handler, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
	}

	app := yaade.New()
	rec := httptest.NewRecorder()
	ctx := yaade.NewContext(rec, req, router.Params{}, app)

	h := handler
	if h == nil {
		h = func(*yaade.Context) error { return nil }
	}
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}

	err := h(ctx)
	return rec, err
}
