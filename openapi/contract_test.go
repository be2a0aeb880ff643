package openapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/yaade/api"
	"github.com/devmarvs/yaade/apperr"
)

const itemsContract = `
openapi: 3.0.3
info:
  title: items
  version: "1"
paths:
  /items/{n}:
    get:
      operationId: getItem
      parameters:
        - name: n
          in: path
          required: true
          schema:
            type: integer
        - name: limit
          in: query
          schema:
            type: integer
            maximum: 10
      responses:
        "200":
          description: ok
  /items:
    post:
      operationId: postItem
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
      responses:
        "201":
          description: created
`

func TestDefaultContractOperations(t *testing.T) {
	contract, err := LoadData(context.Background(), api.Contract)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ops := contract.Operations()
	if len(ops) != 11 {
		t.Fatalf("expected 11 operations, got %d", len(ops))
	}
	for i := 1; i < len(ops); i++ {
		prev, cur := ops[i-1], ops[i]
		if prev.Path > cur.Path || (prev.Path == cur.Path && prev.Method > cur.Method) {
			t.Fatalf("operations not sorted: %s %s before %s %s", prev.Method, prev.Path, cur.Method, cur.Path)
		}
	}

	cases := []struct {
		id      string
		method  string
		path    string
		secured bool
	}{
		{"health", http.MethodGet, "/api/health", false},
		{"doLogin", http.MethodPost, "/api/login", false},
		{"getCurrentUser", http.MethodGet, "/api/user", true},
		{"changeUserPassword", http.MethodPut, "/api/user/changePassword", true},
		{"deleteCollection", http.MethodDelete, "/api/collection/{id}", true},
		{"putRequest", http.MethodPut, "/api/request", true},
	}
	for _, tc := range cases {
		desc, ok := contract.Lookup(tc.id)
		if !ok {
			t.Fatalf("missing operation %s", tc.id)
		}
		if desc.Method != tc.method || desc.Path != tc.path || desc.Secured != tc.secured {
			t.Fatalf("%s: unexpected descriptor %+v", tc.id, desc)
		}
	}
	if _, ok := contract.Lookup("nope"); ok {
		t.Fatalf("expected unknown id to miss")
	}
	if contract.Title() != "yaade" {
		t.Fatalf("unexpected title %q", contract.Title())
	}
}

func TestLoadRejectsDuplicateOperationIDs(t *testing.T) {
	doc := strings.Replace(itemsContract, "operationId: postItem", "operationId: getItem", 1)
	if _, err := LoadData(context.Background(), []byte(doc)); err == nil {
		t.Fatalf("expected duplicate operationId error")
	}
}

func TestLoadRejectsMissingOperationID(t *testing.T) {
	doc := strings.Replace(itemsContract, "      operationId: postItem\n", "", 1)
	_, err := LoadData(context.Background(), []byte(doc))
	if !errors.Is(err, ErrMissingOperationID) {
		t.Fatalf("expected ErrMissingOperationID, got %v", err)
	}
}

func TestLoadRejectsInvalidDocument(t *testing.T) {
	if _, err := LoadData(context.Background(), []byte("openapi: 3.0.3\npaths: {}\n")); err == nil {
		t.Fatalf("expected error for document without info")
	}
	if _, err := Load(context.Background(), "testdata/missing.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRequestBody(t *testing.T) {
	contract, err := LoadData(context.Background(), []byte(itemsContract))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	desc, _ := contract.Lookup("postItem")

	body := []byte(`{"name":"widget"}`)
	req := httptest.NewRequest(http.MethodPost, "/items", nil)
	req.Header.Set("Content-Type", "application/json")
	if err := contract.ValidateRequest(context.Background(), req, body, desc, nil); err != nil {
		t.Fatalf("expected valid body, got %v", err)
	}
	again, _ := io.ReadAll(req.Body)
	if string(again) != string(body) {
		t.Fatalf("expected body to stay readable, got %q", again)
	}

	req = httptest.NewRequest(http.MethodPost, "/items", nil)
	req.Header.Set("Content-Type", "application/json")
	err = contract.ValidateRequest(context.Background(), req, []byte(`{"other":1}`), desc, nil)
	appErr := apperr.As(err)
	if appErr == nil || appErr.Code != apperr.CodeValidation || appErr.Status != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(appErr.Details, "request body") || !strings.Contains(appErr.Details, "name") {
		t.Fatalf("expected details to name the body field, got %q", appErr.Details)
	}

	req = httptest.NewRequest(http.MethodPost, "/items", nil)
	req.Header.Set("Content-Type", "application/json")
	if err := contract.ValidateRequest(context.Background(), req, nil, desc, nil); apperr.As(err) == nil {
		t.Fatalf("expected missing body to fail, got %v", err)
	}
}

func TestValidateRequestParameters(t *testing.T) {
	contract, err := LoadData(context.Background(), []byte(itemsContract))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	desc, _ := contract.Lookup("getItem")

	req := httptest.NewRequest(http.MethodGet, "/items/3?limit=5", nil)
	if err := contract.ValidateRequest(context.Background(), req, nil, desc, map[string]string{"n": "3"}); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/items/abc", nil)
	err = contract.ValidateRequest(context.Background(), req, nil, desc, map[string]string{"n": "abc"})
	appErr := apperr.As(err)
	if appErr == nil || !strings.Contains(appErr.Details, `parameter "n" in path`) {
		t.Fatalf("expected path parameter error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/items/3?limit=50", nil)
	err = contract.ValidateRequest(context.Background(), req, nil, desc, map[string]string{"n": "3"})
	appErr = apperr.As(err)
	if appErr == nil || !strings.Contains(appErr.Details, `parameter "limit" in query`) {
		t.Fatalf("expected query parameter error, got %v", err)
	}
}

func TestValidateRequestRejectsForeignDescriptor(t *testing.T) {
	contract, err := LoadData(context.Background(), []byte(itemsContract))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/items/1", nil)
	err = contract.ValidateRequest(context.Background(), req, nil, Descriptor{ID: "handmade"}, nil)
	if appErr := apperr.As(err); appErr == nil || appErr.Code != apperr.CodeInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestContractHandlerServesDocument(t *testing.T) {
	contract, err := LoadData(context.Background(), []byte(itemsContract))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := httptest.NewRecorder()
	contract.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"getItem"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
}
