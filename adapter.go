package yaade

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"

	"github.com/devmarvs/yaade/apperr"
)

var (
	// ErrResponseClosed is returned by writes after the client went away.
	ErrResponseClosed = errors.New("response closed")
	// ErrClientClosed is returned by Adapt when the client disconnected
	// before the operation finished. Nothing is written for it.
	ErrClientClosed = apperr.ClientClosed("client closed request", nil)
	// ErrShuttingDown is returned by Adapt once the App stopped admitting
	// operation tasks.
	ErrShuttingDown = apperr.Unavailable("server shutting down")
)

// Result is the outcome of an operation. A nil Body writes only the status.
type Result struct {
	Status int
	Body   any
}

// OK returns a 200 result.
func OK(body any) *Result {
	return &Result{Status: http.StatusOK, Body: body}
}

// Created returns a 201 result.
func Created(body any) *Result {
	return &Result{Status: http.StatusCreated, Body: body}
}

// NoContent returns a 204 result.
func NoContent() *Result {
	return &Result{Status: http.StatusNoContent}
}

// OperationFunc is handler logic that may block on I/O.
type OperationFunc func(*Context) (*Result, error)

type taskOutcome struct {
	result *Result
	err    error
}

// Adapt runs fn as a task tracked by the App and turns its outcome into
// exactly one response.
//
// The task's request context does not inherit transport cancellation, so fn
// runs to completion even when the client disconnects. Writes made by fn go
// to a guarded buffer; once the client is gone the guard is closed and every
// later write fails with ErrResponseClosed.
func Adapt(fn OperationFunc) Handler {
	return func(ctx *Context) error {
		guard := newGuardedWriter(ctx.ResponseWriter)
		task := ctx.detach(guard)
		done := make(chan taskOutcome, 1)

		if !ctx.app.goTask(func() {
			done <- runTask(task, fn)
		}) {
			return ErrShuttingDown
		}

		select {
		case outcome := <-done:
			return finish(ctx, guard, outcome)
		case <-ctx.Request.Context().Done():
			guard.close()
			ctx.Logger().Warn("client disconnected before response",
				slog.String("operation", ctx.OperationID()),
			)
			return ErrClientClosed
		}
	}
}

func runTask(ctx *Context, fn OperationFunc) (outcome taskOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			ctx.Logger().Error("operation panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			outcome = taskOutcome{err: apperr.Internal("operation panic", fmt.Errorf("panic: %v", rec))}
		}
	}()
	result, err := fn(ctx)
	return taskOutcome{result: result, err: err}
}

func finish(ctx *Context, guard *guardedWriter, outcome taskOutcome) error {
	if outcome.err != nil {
		guard.close()
		return outcome.err
	}
	if guard.written() {
		if outcome.result != nil {
			ctx.Logger().Warn("operation result discarded after direct write",
				slog.String("operation", ctx.OperationID()),
			)
		}
		return guard.commit()
	}
	guard.close()
	header := ctx.ResponseWriter.Header()
	for key, values := range guard.header {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	result := outcome.result
	if result == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	status := result.Status
	if result.Body == nil {
		if status == 0 {
			status = http.StatusNoContent
		}
		return ctx.NoContent(status)
	}
	if status == 0 {
		status = http.StatusOK
	}
	if err := ctx.JSON(status, result.Body); err != nil {
		return apperr.Internal("encode response", err)
	}
	return nil
}

// guardedWriter buffers an operation's writes until the adapter commits them.
type guardedWriter struct {
	w      http.ResponseWriter
	header http.Header
	buffer bytes.Buffer
	code   int
	wrote  bool
	closed bool
	mu     sync.Mutex
}

func newGuardedWriter(w http.ResponseWriter) *guardedWriter {
	return &guardedWriter{w: w, header: make(http.Header)}
}

func (gw *guardedWriter) Header() http.Header {
	return gw.header
}

func (gw *guardedWriter) WriteHeader(code int) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.closed {
		return
	}
	if gw.code == 0 {
		gw.code = code
	}
	gw.wrote = true
}

func (gw *guardedWriter) Write(p []byte) (int, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.closed {
		return 0, ErrResponseClosed
	}
	gw.wrote = true
	return gw.buffer.Write(p)
}

func (gw *guardedWriter) written() bool {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.wrote
}

func (gw *guardedWriter) commit() error {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.closed {
		return ErrResponseClosed
	}
	gw.closed = true
	for key, values := range gw.header {
		for _, value := range values {
			gw.w.Header().Add(key, value)
		}
	}
	code := gw.code
	if code == 0 {
		code = http.StatusOK
	}
	gw.w.WriteHeader(code)
	_, err := gw.w.Write(gw.buffer.Bytes())
	return err
}

func (gw *guardedWriter) close() {
	gw.mu.Lock()
	gw.closed = true
	gw.buffer.Reset()
	gw.mu.Unlock()
}
