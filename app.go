package yaade

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/config"
	"github.com/devmarvs/yaade/logging"
	"github.com/devmarvs/yaade/openapi"
	"github.com/devmarvs/yaade/router"
)

// Handler serves one request. A returned error goes to the app's ErrorHandler.
type Handler func(*Context) error

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// ErrorHandler turns a handler error into a response.
type ErrorHandler func(*Context, error)

// WrapHandler runs a net/http handler as a Handler.
func WrapHandler(h http.Handler) Handler {
	return func(ctx *Context) error {
		h.ServeHTTP(ctx.ResponseWriter, ctx.Request)
		return nil
	}
}

// route is what the router's RouteID points at.
type route struct {
	handler   Handler
	operation *openapi.Descriptor
}

// App dispatches requests through global middleware to the first matching
// route.
type App struct {
	config  config.Config
	logger  *slog.Logger
	onError ErrorHandler

	router *router.Router
	table  map[router.RouteID]route
	global []Middleware

	taskMu   sync.Mutex
	draining bool
	tasks    sync.WaitGroup
}

// Option configures an App.
type Option func(*App)

// WithConfig replaces config.Default.
func WithConfig(cfg config.Config) Option {
	return func(app *App) { app.config = cfg }
}

// WithLogger sets the logger handed to every Context.
func WithLogger(logger *slog.Logger) Option {
	return func(app *App) { app.logger = logger }
}

// WithErrorHandler replaces DefaultErrorHandler. Nil is ignored.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(app *App) {
		if handler != nil {
			app.onError = handler
		}
	}
}

// New returns an App with no routes.
func New(options ...Option) *App {
	app := &App{
		config:  config.Default(),
		onError: DefaultErrorHandler,
		router:  router.New(),
		table:   map[router.RouteID]route{},
	}
	for _, apply := range options {
		apply(app)
	}
	if app.logger == nil {
		app.logger = logging.NewLogger(logging.Options{
			Level:  app.config.LogLevel,
			Format: app.config.LogFormat,
		})
	}
	return app
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Use appends global middleware. It also runs for unmatched requests.
func (a *App) Use(middleware ...Middleware) {
	a.global = append(a.global, middleware...)
}

// GET registers handler for GET requests on path.
func (a *App) GET(path string, handler Handler, middleware ...Middleware) {
	a.handle(http.MethodGet, path, handler, middleware...)
}

// HEAD registers handler for HEAD requests on path.
func (a *App) HEAD(path string, handler Handler, middleware ...Middleware) {
	a.handle(http.MethodHead, path, handler, middleware...)
}

// POST registers handler for POST requests on path.
func (a *App) POST(path string, handler Handler, middleware ...Middleware) {
	a.handle(http.MethodPost, path, handler, middleware...)
}

// DELETE registers handler for DELETE requests on path.
func (a *App) DELETE(path string, handler Handler, middleware ...Middleware) {
	a.handle(http.MethodDelete, path, handler, middleware...)
}

// Handle registers handler for method on path.
func (a *App) Handle(method, path string, handler Handler, middleware ...Middleware) {
	a.handle(method, path, handler, middleware...)
}

// handle logs bad patterns instead of failing, so a typo in one route does
// not keep the rest of the app from starting.
func (a *App) handle(method, path string, handler Handler, middleware ...Middleware) {
	if _, err := a.register(method, path, wrap(handler, middleware), nil); err != nil {
		a.logger.Error("route registration failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (a *App) register(method, path string, handler Handler, operation *openapi.Descriptor) (router.RouteID, error) {
	id, err := a.router.Add(method, path)
	if err != nil {
		return 0, err
	}
	a.table[id] = route{handler: handler, operation: operation}
	return id, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := a.unmatched(r.URL.Path)
	var operation *openapi.Descriptor
	id, params, ok := a.router.Match(r.Method, r.URL.Path)
	if ok {
		entry := a.table[id]
		handler, operation = entry.handler, entry.operation
	} else {
		params = router.Params{}
	}

	ctx := NewContext(w, r, params, a)
	ctx.operation = operation
	if err := wrap(handler, a.global)(ctx); err != nil {
		a.onError(ctx, err)
	}
}

// unmatched answers 405 with an Allow header when other methods accept path,
// 404 otherwise.
func (a *App) unmatched(path string) Handler {
	return func(ctx *Context) error {
		allowed := a.router.Allowed(path)
		if len(allowed) == 0 {
			return apperr.NotFound("not found", nil)
		}
		ctx.ResponseWriter.Header().Set("Allow", strings.Join(allowed, ", "))
		return apperr.MethodNotAllowed("method not allowed")
	}
}

// wrap applies middleware so that the first one listed runs first.
func wrap(h Handler, middleware []Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
