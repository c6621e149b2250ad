package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type Runner struct {
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, ShutdownTimeout: 10 * time.Second}
}

// WithSignals runs start until it returns or SIGINT/SIGTERM arrives and maps the outcome to an exit code.
// start receives a context cancelled on signal and must return once it has shut down;
// WithSignals waits up to ShutdownTimeout (plus a second of slack) for that before giving up.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
	}

	timer := time.NewTimer(r.timeout() + time.Second)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return r.exitCode(err)
	case <-timer.C:
		r.Logger.Error("shutdown timed out", zap.Duration("timeout", r.timeout()))
		return 1
	}
}

// Serve runs serve until it fails or ctx is cancelled. On cancellation it calls
// shutdown through Graceful and returns only after shutdown has finished.
func (r *Runner) Serve(ctx context.Context, serve func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	r.Graceful(shutdown)
	return nil
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

// Graceful calls shutdown with a fresh context bounded by ShutdownTimeout.
func (r *Runner) Graceful(shutdown func(context.Context) error) {
	c, cancel := context.WithTimeout(context.Background(), r.timeout())
	defer cancel()
	if err := shutdown(c); err != nil {
		r.Logger.Warn("graceful shutdown", zap.Error(err))
	}
}

func (r *Runner) timeout() time.Duration {
	if r.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return r.ShutdownTimeout
}

func Exit(code int) {
	os.Exit(code)
}
