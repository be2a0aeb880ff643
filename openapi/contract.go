// Package openapi loads the operation contract and validates requests against it.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"

	"github.com/devmarvs/yaade/apperr"
)

var (
	// ErrDuplicateOperation reports two operations sharing an identifier.
	ErrDuplicateOperation = errors.New("duplicate operationId")
	// ErrMissingOperationID reports an operation without an identifier.
	ErrMissingOperationID = errors.New("missing operationId")
)

// Descriptor is one operation declared by the contract.
type Descriptor struct {
	ID      string
	Method  string
	Path    string
	Pattern string
	Secured bool

	route *routers.Route
}

// Contract is a validated OpenAPI document indexed by operation id.
type Contract struct {
	doc        *openapi3.T
	operations []Descriptor
	byID       map[string]int
}

// Load reads and validates an OpenAPI document from disk.
func Load(ctx context.Context, path string) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load contract %s: %w", path, err)
	}
	return build(ctx, doc)
}

// LoadData parses and validates an OpenAPI document held in memory.
func LoadData(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load contract: %w", err)
	}
	return build(ctx, doc)
}

func build(ctx context.Context, doc *openapi3.T) (*Contract, error) {
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}

	contract := &Contract{doc: doc, byID: map[string]int{}}
	if doc.Paths == nil {
		return contract, nil
	}

	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			id := strings.TrimSpace(op.OperationID)
			if id == "" {
				return nil, fmt.Errorf("%w: %s %s", ErrMissingOperationID, method, path)
			}
			contract.operations = append(contract.operations, Descriptor{
				ID:      id,
				Method:  strings.ToUpper(method),
				Path:    path,
				Pattern: path,
				Secured: secured(doc, op),
				route: &routers.Route{
					Spec:      doc,
					Path:      path,
					PathItem:  item,
					Method:    strings.ToUpper(method),
					Operation: op,
				},
			})
		}
	}

	sort.Slice(contract.operations, func(i, j int) bool {
		a, b := contract.operations[i], contract.operations[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})

	for i, desc := range contract.operations {
		if prev, ok := contract.byID[desc.ID]; ok {
			other := contract.operations[prev]
			return nil, fmt.Errorf("%w %q: %s %s and %s %s", ErrDuplicateOperation, desc.ID, other.Method, other.Path, desc.Method, desc.Path)
		}
		contract.byID[desc.ID] = i
	}
	return contract, nil
}

func secured(doc *openapi3.T, op *openapi3.Operation) bool {
	if op.Security != nil {
		return len(*op.Security) > 0
	}
	return len(doc.Security) > 0
}

// Operations returns the declared operations sorted by path then method.
func (c *Contract) Operations() []Descriptor {
	out := make([]Descriptor, len(c.operations))
	copy(out, c.operations)
	return out
}

// Lookup finds an operation by id.
func (c *Contract) Lookup(id string) (Descriptor, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.operations[idx], true
}

// Title returns the document title.
func (c *Contract) Title() string {
	if c.doc.Info == nil {
		return ""
	}
	return c.doc.Info.Title
}

// Version returns the document version.
func (c *Contract) Version() string {
	if c.doc.Info == nil {
		return ""
	}
	return c.doc.Info.Version
}

// ValidateRequest checks parameters and body of req against desc.
// Security requirements are not evaluated here. The request body is replaced
// with a fresh reader over body so it stays readable.
func (c *Contract) ValidateRequest(ctx context.Context, req *http.Request, body []byte, desc Descriptor, params map[string]string) error {
	if desc.route == nil {
		return apperr.Internal("operation not loaded from contract", fmt.Errorf("descriptor %q", desc.ID))
	}

	req.Body = io.NopCloser(bytes.NewReader(body))
	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: params,
		Route:      desc.route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	err := openapi3filter.ValidateRequest(ctx, input)
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err == nil {
		return nil
	}
	return apperr.Validation("request does not match operation "+desc.ID, err).WithDetails(reason(err))
}

func reason(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var where string
		switch {
		case reqErr.Parameter != nil:
			where = fmt.Sprintf("parameter %q in %s", reqErr.Parameter.Name, reqErr.Parameter.In)
		case reqErr.RequestBody != nil:
			where = "request body"
		}
		detail := reqErr.Reason
		if reqErr.Err != nil {
			if detail != "" {
				detail += ": "
			}
			detail += reqErr.Err.Error()
		}
		if where == "" {
			return detail
		}
		return where + ": " + detail
	}
	return err.Error()
}

// Handler serves the contract document as JSON.
func (c *Contract) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := json.Marshal(c.doc)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(payload)
	})
}
