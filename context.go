package yaade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"

	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/auth"
	"github.com/devmarvs/yaade/openapi"
	"github.com/devmarvs/yaade/render"
	"github.com/devmarvs/yaade/router"
	"github.com/devmarvs/yaade/session"
)

// Context is the per-request route context. It is owned by one request and
// never shared with another.
type Context struct {
	ResponseWriter http.ResponseWriter
	Request        *http.Request
	Params         router.Params

	app       *App
	values    map[string]any
	operation *openapi.Descriptor
	session   *session.Session
	principal *auth.Principal

	rawBody  []byte
	bodyRead bool
	body     any
	parsed   bool
}

// NewContext constructs a Context.
func NewContext(w http.ResponseWriter, r *http.Request, params router.Params, app *App) *Context {
	return &Context{
		ResponseWriter: w,
		Request:        r,
		Params:         params,
		app:            app,
		values:         make(map[string]any),
	}
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Param returns a route param.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Query returns a query param.
func (c *Context) Query(name string) string {
	return c.Request.URL.Query().Get(name)
}

// Set stores a value in the context.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get retrieves a stored value.
func (c *Context) Get(key string) (any, bool) {
	value, ok := c.values[key]
	return value, ok
}

// Operation returns the contract operation matched for this request.
func (c *Context) Operation() (openapi.Descriptor, bool) {
	if c.operation == nil {
		return openapi.Descriptor{}, false
	}
	return *c.operation, true
}

// OperationID returns the matched operation id, or "" outside the contract.
func (c *Context) OperationID() string {
	if c.operation == nil {
		return ""
	}
	return c.operation.ID
}

// Session returns the attached session, if any.
func (c *Context) Session() *session.Session {
	return c.session
}

// SetSession attaches a session.
func (c *Context) SetSession(sess *session.Session) {
	c.session = sess
}

// Principal returns the authenticated principal set by the gate.
func (c *Context) Principal() (auth.Principal, bool) {
	if c.principal == nil {
		return auth.Principal{}, false
	}
	return *c.principal, true
}

// SetPrincipal records the authenticated principal.
func (c *Context) SetPrincipal(principal auth.Principal) {
	c.principal = &principal
}

// Logger returns a request-scoped logger.
func (c *Context) Logger() Logger {
	return Logger{
		logger:    c.app.logger,
		ctx:       c.Request.Context(),
		requestID: c.RequestID(),
		operation: c.OperationID(),
	}
}

// JSON responds with JSON.
func (c *Context) JSON(status int, payload any) error {
	return render.JSON(c.ResponseWriter, status, payload)
}

// Text responds with plain text.
func (c *Context) Text(status int, message string) error {
	return render.Text(c.ResponseWriter, status, message)
}

// NoContent responds with a status and no body.
func (c *Context) NoContent(status int) error {
	return render.Status(c.ResponseWriter, status)
}

// RawBody reads the request body once and keeps it for later stages.
// The request body is replaced with a reader over the buffered bytes.
func (c *Context) RawBody() ([]byte, error) {
	if c.bodyRead {
		return c.rawBody, nil
	}
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		c.bodyRead = true
		return nil, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	_ = c.Request.Body.Close()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperr.PayloadTooLarge("request body too large", err)
		}
		return nil, apperr.BadRequest("unreadable request body", err)
	}
	c.rawBody = data
	c.bodyRead = true
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// Body returns the request body decoded as generic JSON, or nil when empty.
func (c *Context) Body() (any, error) {
	if c.parsed {
		return c.body, nil
	}
	data, err := c.RawBody()
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &c.body); err != nil {
			return nil, apperr.BadRequest("invalid JSON", err)
		}
	}
	c.parsed = true
	return c.body, nil
}

// BindJSON decodes the request body into dst.
func (c *Context) BindJSON(dst any) error {
	data, err := c.RawBody()
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(dst); err != nil {
		return apperr.BadRequest("invalid JSON", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return apperr.BadRequest("unexpected JSON payload", err)
	}
	return nil
}

// RequestID returns the request id header.
func (c *Context) RequestID() string {
	return RequestIDFromHeader(c.Request)
}

// detach copies the context for an operation task. The copy writes to w and
// its request context ignores transport cancellation.
func (c *Context) detach(w http.ResponseWriter) *Context {
	clone := *c
	clone.ResponseWriter = w
	clone.Request = c.Request.WithContext(context.WithoutCancel(c.Request.Context()))
	clone.values = maps.Clone(c.values)
	clone.Params = maps.Clone(c.Params)
	return &clone
}
