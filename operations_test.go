package yaade

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/devmarvs/yaade/api"
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/openapi"
	"github.com/devmarvs/yaade/session"
)

func loadContract(t *testing.T) *openapi.Contract {
	t.Helper()
	contract, err := openapi.LoadData(context.Background(), api.Contract)
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	return contract
}

// attach fixes the session every request sees.
func attach(sess *session.Session) Middleware {
	return func(next Handler) Handler {
		return func(ctx *Context) error {
			ctx.SetSession(sess)
			return next(ctx)
		}
	}
}

func serve(app *App, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestBindOperationsUnknownID(t *testing.T) {
	app := newTestApp()
	err := app.BindOperations(loadContract(t), map[string]Handler{
		"health":     func(ctx *Context) error { return ctx.NoContent(http.StatusOK) },
		"getWidgets": func(ctx *Context) error { return nil },
	})
	if !errors.Is(err, ErrUnknownOperation) || !strings.Contains(err.Error(), "getWidgets") {
		t.Fatalf("expected unknown operation error, got %v", err)
	}

	rec := serve(app, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no route may be registered after a failed bind, got %d", rec.Code)
	}
}

func TestBindOperationsRequiresContract(t *testing.T) {
	if err := newTestApp().BindOperations(nil, nil); !errors.Is(err, ErrContractRequired) {
		t.Fatalf("expected ErrContractRequired, got %v", err)
	}
}

func TestBindOperationsNilHandler(t *testing.T) {
	err := newTestApp().BindOperations(loadContract(t), map[string]Handler{"health": nil})
	if err == nil {
		t.Fatalf("expected nil handler error")
	}
}

func TestBindOperationsDispatch(t *testing.T) {
	app := newTestApp()
	var operation string
	err := app.BindOperations(loadContract(t), map[string]Handler{
		"deleteCollection": func(ctx *Context) error {
			operation = ctx.OperationID()
			return ctx.Text(http.StatusOK, ctx.Param("id"))
		},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	rec := serve(app, http.MethodDelete, "/api/collection/c-42", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "c-42" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if operation != "deleteCollection" {
		t.Fatalf("expected operation id on context, got %q", operation)
	}
}

func TestBindOperationsUnboundIsNotImplemented(t *testing.T) {
	app := newTestApp()
	if err := app.BindOperations(loadContract(t), map[string]Handler{}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	rec := serve(app, http.MethodGet, "/api/collection", "")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestBindOperationsValidatesBeforeGate(t *testing.T) {
	var invoked atomic.Int32
	handler := Authorized(func(ctx *Context) error {
		invoked.Add(1)
		return ctx.NoContent(http.StatusCreated)
	})

	anonymous := &session.Session{ID: "anon", Values: map[string]string{}}
	loggedIn := &session.Session{ID: "user"}
	loggedIn.SetUser("u1", "admin")

	cases := []struct {
		name   string
		sess   *session.Session
		body   string
		status int
	}{
		{"anonymous bad body", anonymous, `{"nope": true}`, http.StatusBadRequest},
		{"anonymous missing body", anonymous, "", http.StatusBadRequest},
		{"user bad body", loggedIn, `{"data": "not an object"}`, http.StatusBadRequest},
		{"anonymous good body", anonymous, `{"data": {"name": "c"}}`, http.StatusUnauthorized},
		{"user good body", loggedIn, `{"data": {"name": "c"}}`, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			invoked.Store(0)
			app := newTestApp()
			app.Use(attach(tc.sess))
			if err := app.BindOperations(loadContract(t), map[string]Handler{"postCollection": handler}); err != nil {
				t.Fatalf("bind: %v", err)
			}

			rec := serve(app, http.MethodPost, "/api/collection", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			wantInvoked := int32(0)
			if tc.status == http.StatusCreated {
				wantInvoked = 1
			}
			if invoked.Load() != wantInvoked {
				t.Fatalf("handler invoked %d times, want %d", invoked.Load(), wantInvoked)
			}
		})
	}
}

func TestBindOperationsValidationDetails(t *testing.T) {
	app := newTestApp()
	err := app.BindOperations(loadContract(t), map[string]Handler{
		"doLogin": func(ctx *Context) error { return ctx.NoContent(http.StatusOK) },
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	rec := serve(app, http.MethodPost, "/api/login", `{"username": "admin"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), apperr.CodeValidation) || !strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("expected validation details, got %s", rec.Body.String())
	}
}

func TestBindOperationsBodyReadableByHandler(t *testing.T) {
	app := newTestApp()
	var got struct {
		Username string `json:"username"`
	}
	err := app.BindOperations(loadContract(t), map[string]Handler{
		"doLogin": func(ctx *Context) error {
			if err := ctx.BindJSON(&got); err != nil {
				return err
			}
			return ctx.NoContent(http.StatusOK)
		},
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	rec := serve(app, http.MethodPost, "/api/login", `{"username": "admin", "password": "pw"}`)
	if rec.Code != http.StatusOK || got.Username != "admin" {
		t.Fatalf("unexpected %d %+v", rec.Code, got)
	}
}

func TestBindOperationsFallThrough(t *testing.T) {
	app := newTestApp()
	if err := app.BindOperations(loadContract(t), map[string]Handler{
		"health": func(ctx *Context) error { return ctx.Text(http.StatusOK, "UP") },
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	app.GET("/*path", func(ctx *Context) error {
		return ctx.Text(http.StatusOK, "static")
	})

	if rec := serve(app, http.MethodGet, "/collections/42", ""); rec.Body.String() != "static" {
		t.Fatalf("undeclared path should fall through, got %d %q", rec.Code, rec.Body.String())
	}
	if rec := serve(app, http.MethodGet, "/api/health", ""); rec.Body.String() != "UP" {
		t.Fatalf("declared operation should win, got %q", rec.Body.String())
	}

	rec := serve(app, http.MethodPost, "/api/health", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Allow"), http.MethodGet) {
		t.Fatalf("expected GET in Allow, got %q", rec.Header().Get("Allow"))
	}
}
