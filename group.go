package yaade

import (
	"net/http"
	"path"
)

// Group registers routes under a shared path prefix and middleware.
type Group struct {
	app        *App
	prefix     string
	middleware []Middleware
}

// Group starts a route group at prefix.
func (a *App) Group(prefix string, middleware ...Middleware) *Group {
	return &Group{app: a, prefix: cleanPrefix(prefix), middleware: middleware}
}

// Group nests a group; the parent's middleware runs first.
func (g *Group) Group(prefix string, middleware ...Middleware) *Group {
	return &Group{
		app:        g.app,
		prefix:     joinPaths(g.prefix, prefix),
		middleware: g.chain(middleware),
	}
}

// Use appends middleware for routes registered afterwards.
func (g *Group) Use(middleware ...Middleware) {
	g.middleware = append(g.middleware, middleware...)
}

// GET registers a GET route.
func (g *Group) GET(path string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodGet, path, handler, middleware...)
}

// POST registers a POST route.
func (g *Group) POST(path string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodPost, path, handler, middleware...)
}

// Handle registers a route for any method.
func (g *Group) Handle(method, path string, handler Handler, middleware ...Middleware) {
	g.app.handle(method, joinPaths(g.prefix, path), handler, g.chain(middleware)...)
}

func (g *Group) chain(extra []Middleware) []Middleware {
	combined := make([]Middleware, 0, len(g.middleware)+len(extra))
	combined = append(combined, g.middleware...)
	return append(combined, extra...)
}

func joinPaths(base, p string) string {
	return path.Join("/", base, p)
}

// cleanPrefix roots prefix and drops trailing slashes; "" stays empty.
func cleanPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return path.Clean("/" + prefix)
}
