package yaade

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/devmarvs/yaade/apperr"
)

// indexCacheControl keeps browsers revalidating the client entry point so a
// new release is picked up; hashed assets keep the long-lived policy.
const indexCacheControl = "no-cache"

type staticConfig struct {
	cacheControl string
	etag         bool
	indexFile    string
	paramName    string
	spa          bool
	spaExclude   []string
}

// StaticOption configures static file handling.
type StaticOption func(*staticConfig)

// StaticCacheControl sets the Cache-Control value for files other than the index.
func StaticCacheControl(value string) StaticOption {
	return func(cfg *staticConfig) {
		cfg.cacheControl = value
	}
}

// StaticETag toggles ETag and If-None-Match handling.
func StaticETag(enabled bool) StaticOption {
	return func(cfg *staticConfig) {
		cfg.etag = enabled
	}
}

// StaticIndex names the file served for directories.
func StaticIndex(name string) StaticOption {
	return func(cfg *staticConfig) {
		cfg.indexFile = name
	}
}

// StaticSPA serves the root index file for unknown paths without a file
// extension, so client-side routes load the front end.
func StaticSPA(enabled bool) StaticOption {
	return func(cfg *staticConfig) {
		cfg.spa = enabled
	}
}

// StaticSPAExclude keeps request paths under the given prefixes out of the
// SPA fallback, so they answer 404 instead of the index file.
func StaticSPAExclude(prefixes ...string) StaticOption {
	return func(cfg *staticConfig) {
		for _, prefix := range prefixes {
			if prefix = cleanPrefix(prefix); prefix != "" && prefix != "/" {
				cfg.spaExclude = append(cfg.spaExclude, prefix)
			}
		}
	}
}

// Static serves the directory dir under prefix.
func (a *App) Static(prefix, dir string, options ...StaticOption) {
	a.StaticFS(prefix, os.DirFS(dir), options...)
}

// StaticFS serves fsys under prefix for GET and HEAD. Register it last: its
// wildcard matches every path below prefix.
func (a *App) StaticFS(prefix string, fsys fs.FS, options ...StaticOption) {
	cfg := staticConfig{
		cacheControl: "public, max-age=86400",
		etag:         true,
		indexFile:    "index.html",
		paramName:    "path",
	}
	for _, opt := range options {
		opt(&cfg)
	}

	files := &staticFiles{fsys: fsys, cfg: cfg}
	pattern := strings.TrimRight(cleanPrefix(prefix), "/") + "/*" + cfg.paramName
	a.GET(pattern, files.handle)
	a.HEAD(pattern, files.handle)
}

type staticFiles struct {
	fsys fs.FS
	cfg  staticConfig
}

func (s *staticFiles) handle(ctx *Context) error {
	rel := ctx.Param(s.cfg.paramName)
	err := s.serve(ctx, rel)
	if err != nil && s.fallback(ctx.Request.URL.Path, rel) && isNotFound(err) {
		return s.serve(ctx, s.cfg.indexFile)
	}
	return err
}

func (s *staticFiles) fallback(requestPath, rel string) bool {
	if !s.cfg.spa || s.cfg.indexFile == "" || path.Ext(rel) != "" {
		return false
	}
	for _, prefix := range s.cfg.spaExclude {
		if requestPath == prefix || strings.HasPrefix(requestPath, prefix+"/") {
			return false
		}
	}
	return true
}

func (s *staticFiles) serve(ctx *Context, rel string) error {
	if s.fsys == nil {
		return apperr.Internal("static fs missing", nil)
	}
	if rel == "" {
		rel = s.cfg.indexFile
	}
	if rel == "" {
		return apperr.NotFound("not found", nil)
	}

	name := strings.TrimPrefix(path.Clean("/"+rel), "/")
	if name == "" {
		name = "."
	}
	file, err := s.fsys.Open(name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return apperr.NotFound("not found", err)
	}
	if err != nil {
		return apperr.Internal("file open failed", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return apperr.Internal("file stat failed", err)
	}
	if info.IsDir() {
		if s.cfg.indexFile == "" {
			return apperr.NotFound("not found", nil)
		}
		return s.serve(ctx, path.Join(name, s.cfg.indexFile))
	}

	header := ctx.ResponseWriter.Header()
	switch {
	case path.Base(name) == s.cfg.indexFile:
		header.Set("Cache-Control", indexCacheControl)
	case s.cfg.cacheControl != "":
		header.Set("Cache-Control", s.cfg.cacheControl)
	}
	if s.cfg.etag {
		etag := fmt.Sprintf("\"%x-%x\"", info.ModTime().UnixNano(), info.Size())
		header.Set("ETag", etag)
		if matchETag(ctx.Request.Header.Get("If-None-Match"), etag) {
			ctx.ResponseWriter.WriteHeader(http.StatusNotModified)
			return nil
		}
	}

	content, ok := file.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(file)
		if err != nil {
			return apperr.Internal("file read failed", err)
		}
		content = bytes.NewReader(data)
	}
	http.ServeContent(ctx.ResponseWriter, ctx.Request, info.Name(), info.ModTime(), content)
	return nil
}

func isNotFound(err error) bool {
	appErr := apperr.As(err)
	return appErr != nil && appErr.Code == apperr.CodeNotFound
}

func matchETag(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		if part = strings.TrimSpace(part); part == etag || part == "*" {
			return true
		}
	}
	return false
}
