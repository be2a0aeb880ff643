// Package pprof mounts the runtime profiling endpoints behind the session gate.
package pprof

import (
	"errors"
	"net/http"
	netpprof "net/http/pprof"
	"path"
	"strings"

	"github.com/devmarvs/yaade"
)

// DefaultPrefix is used when Register gets an empty or root prefix.
const DefaultPrefix = "/debug/pprof"

var endpoints = []struct {
	method  string
	path    string
	handler http.HandlerFunc
}{
	{http.MethodGet, "/", netpprof.Index},
	{http.MethodGet, "/cmdline", netpprof.Cmdline},
	{http.MethodGet, "/profile", netpprof.Profile},
	{http.MethodGet, "/symbol", netpprof.Symbol},
	{http.MethodPost, "/symbol", netpprof.Symbol},
	{http.MethodGet, "/trace", netpprof.Trace},
}

// Register mounts the profiles under prefix for logged in sessions only.
// Call it before registering any catch-all route.
func Register(app *yaade.App, prefix string) error {
	if app == nil {
		return errors.New("pprof: nil app")
	}
	prefix = normalizePrefix(prefix)
	if prefix == "" || prefix == "/" {
		prefix = DefaultPrefix
	}

	group := app.Group(prefix, yaade.Authorized)
	for _, e := range endpoints {
		group.Handle(e.method, e.path, yaade.WrapHandler(e.handler))
	}
	group.GET("/:profile", func(ctx *yaade.Context) error {
		netpprof.Handler(ctx.Param("profile")).ServeHTTP(ctx.ResponseWriter, ctx.Request)
		return nil
	})
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	return path.Clean("/" + prefix)
}
