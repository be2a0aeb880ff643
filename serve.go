package yaade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// Listen binds the configured address and serves until ctx is canceled.
func (a *App) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln. Cancelling ctx starts a graceful shutdown
// bounded by the configured timeout, which also covers in-flight operation
// tasks.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a,
		ReadTimeout:       a.config.ReadTimeout,
		ReadHeaderTimeout: a.config.ReadHeaderTimeout,
		WriteTimeout:      a.config.WriteTimeout,
		IdleTimeout:       a.config.IdleTimeout,
		MaxHeaderBytes:    a.config.MaxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}
	startAttrs := []any{slog.String("addr", ln.Addr().String())}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		startAttrs = append(startAttrs, slog.Int("port", tcp.Port))
	}
	a.logger.Info("server started", startAttrs...)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	var err error
	select {
	case err = <-served:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("shutdown incomplete", slog.String("error", shutdownErr.Error()))
		}
		err = <-served
		if waitErr := a.WaitTasks(shutdownCtx); waitErr != nil {
			a.logger.Warn("operation tasks still running at shutdown", slog.String("error", waitErr.Error()))
		}
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// WaitTasks stops admitting operation tasks and blocks until every running
// one has finished or ctx is done. Adapt answers 503 afterwards.
func (a *App) WaitTasks(ctx context.Context) error {
	a.taskMu.Lock()
	a.draining = true
	a.taskMu.Unlock()

	done := make(chan struct{})
	go func() {
		a.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// goTask runs fn in a tracked goroutine. It reports false, without running
// fn, once WaitTasks has been called.
func (a *App) goTask(fn func()) bool {
	a.taskMu.Lock()
	defer a.taskMu.Unlock()
	if a.draining {
		return false
	}
	a.tasks.Add(1)
	go func() {
		defer a.tasks.Done()
		fn()
	}()
	return true
}
