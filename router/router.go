// Package router matches request paths against an ordered route list.
package router

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// RouteID identifies a registered route.
type RouteID int

// Params holds the values captured from the path.
type Params map[string]string

// AnyMethod registers a route for every method.
const AnyMethod = "*"

type part struct {
	literal  string
	param    string
	wildcard bool
}

type route struct {
	id     RouteID
	method string
	parts  []part
}

// Router keeps routes in registration order; the first match wins, so a
// catch-all added last only sees requests no other route took.
type Router struct {
	routes []route
}

// New returns an empty Router.
func New() *Router {
	return &Router{}
}

// Add registers method and pattern. Parameters are written ":name" or
// "{name}"; a final "*name" captures the remaining path, possibly empty.
func (r *Router) Add(method, pattern string) (RouteID, error) {
	if method == "" {
		return 0, errors.New("method required")
	}
	parts, err := compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	id := RouteID(len(r.routes))
	r.routes = append(r.routes, route{id: id, method: method, parts: parts})
	return id, nil
}

// Match returns the first route accepting method and path.
func (r *Router) Match(method, path string) (RouteID, Params, bool) {
	segments := split(path)
	for _, rt := range r.routes {
		if rt.method != AnyMethod && rt.method != method {
			continue
		}
		if params, ok := rt.match(segments); ok {
			return rt.id, params, true
		}
	}
	return 0, nil, false
}

// Allowed lists, sorted, the explicit methods of routes matching path.
func (r *Router) Allowed(path string) []string {
	segments := split(path)
	var methods []string
	for _, rt := range r.routes {
		if rt.method == AnyMethod || slices.Contains(methods, rt.method) {
			continue
		}
		if _, ok := rt.match(segments); ok {
			methods = append(methods, rt.method)
		}
	}
	slices.Sort(methods)
	return methods
}

func (rt route) match(segments []string) (Params, bool) {
	params := Params{}
	for i, p := range rt.parts {
		if p.wildcard {
			params[p.param] = strings.Join(segments[i:], "/")
			return params, true
		}
		if i >= len(segments) {
			return nil, false
		}
		switch {
		case p.param != "":
			params[p.param] = segments[i]
		case p.literal != segments[i]:
			return nil, false
		}
	}
	if len(segments) != len(rt.parts) {
		return nil, false
	}
	return params, true
}

func compile(pattern string) ([]part, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, errors.New("must start with '/'")
	}
	segments := split(pattern)
	parts := make([]part, 0, len(segments))
	for i, segment := range segments {
		switch {
		case segment == "":
			return nil, errors.New("empty path segment")
		case strings.HasPrefix(segment, "*"):
			if i != len(segments)-1 {
				return nil, errors.New("wildcard must be the last segment")
			}
			name := segment[1:]
			if name == "" {
				return nil, errors.New("wildcard name required")
			}
			parts = append(parts, part{param: name, wildcard: true})
		case strings.HasPrefix(segment, ":"):
			if segment[1:] == "" {
				return nil, errors.New("param name required")
			}
			parts = append(parts, part{param: segment[1:]})
		case strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}"):
			if len(segment) == 2 {
				return nil, errors.New("param name required")
			}
			parts = append(parts, part{param: segment[1 : len(segment)-1]})
		default:
			parts = append(parts, part{literal: segment})
		}
	}
	return parts, nil
}

// split breaks a path into segments; "/" and "" have none.
func split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
