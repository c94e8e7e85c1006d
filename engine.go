package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Logger captures engine logs; implementors can wrap slog/zap/etc.
type Logger interface {
	Info(ctx context.Context, format string, v ...any)
	Warn(ctx context.Context, format string, v ...any)
	Error(ctx context.Context, format string, v ...any)
}

// Identity reports the authenticated owner, if any. A drain proceeds only
// while an owner is available.
type Identity func(ctx context.Context) (ownerID string, ok bool)

// Options configure Engine behaviour.
type Options struct {
	// MaxAttempts is the retry budget: failed attempts before a record is
	// abandoned as failed.
	MaxAttempts int
	// Logger emits structured logs for drain activity.
	Logger Logger
	// Hooks observes engine events for metrics.
	Hooks Hooks
	// Identity gates draining on an authenticated owner.
	Identity Identity
	// Now supplies the current time; override for tests.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Hooks == nil {
		o.Hooks = noopHooks{}
	}
	if o.Identity == nil {
		o.Identity = func(context.Context) (string, bool) { return "", true }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Engine drains the durable queue in strict FIFO order, replaying each
// mutation against the backend. At most one drain runs at a time; the guard
// is owned by the engine instance, not package state.
type Engine struct {
	store    Store
	writer   Writer
	opts     Options
	draining atomic.Bool
}

// NewEngine wires a Store and Writer with the provided options.
func NewEngine(store Store, writer Writer, opts Options) *Engine {
	opts.setDefaults()
	return &Engine{
		store:  store,
		writer: writer,
		opts:   opts,
	}
}

// Draining reports whether a drain pass is currently running. This flag is
// the authoritative in-flight state; store reads are diagnostics only.
func (e *Engine) Draining() bool {
	return e.draining.Load()
}

// Drain performs one pass over the pending queue, committing records in
// insertion order and stopping at the first failure so a later mutation is
// never applied before an earlier one that is still failing.
//
// A Drain while another is in progress, or without an authenticated owner,
// is a no-op. Backend failures are absorbed into the records' status and
// last_error; only durable-store failures are returned, aborting the pass.
func (e *Engine) Drain(ctx context.Context) error {
	if !e.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer e.draining.Store(false)

	owner, ok := e.opts.Identity(ctx)
	if !ok {
		return nil
	}

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		e.opts.Hooks.OnStoreError(ctx, "list_pending", "", err)
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	start := e.opts.Now()
	attempted := 0
	defer func() {
		e.opts.Hooks.OnDrain(ctx, attempted, e.opts.Now().Sub(start))
	}()

	e.opts.Logger.Info(ctx, "draining %d pending mutations for owner %s", len(pending), owner)

	for _, rec := range pending {
		// Records at or over the budget stay queued for operators; they are
		// skipped, never silently dropped.
		if rec.Status == StatusFailed || rec.RetryCount >= e.opts.MaxAttempts {
			continue
		}
		attempted++

		if err := e.mark(ctx, rec.ID, StatusUpdate{Status: statusPtr(StatusRetrying)}); err != nil {
			return err
		}

		writeErr := e.writer.Write(ctx, rec)
		if writeErr == nil || errors.Is(writeErr, ErrConflict) {
			if errors.Is(writeErr, ErrConflict) {
				e.opts.Logger.Info(ctx, "record %s already applied, dequeuing", rec.ID)
			}
			if err := e.store.Dequeue(ctx, rec.ID); err != nil {
				e.opts.Hooks.OnStoreError(ctx, "dequeue", rec.ID, err)
				return err
			}
			e.opts.Hooks.OnReplaySuccess(ctx, rec)
			continue
		}

		e.opts.Hooks.OnReplayFailure(ctx, rec, writeErr)

		if errors.Is(writeErr, ErrUnsupportedKind) {
			// No replay branch can ever succeed; fail now rather than
			// consuming the retry budget one drain at a time.
			if err := e.mark(ctx, rec.ID, StatusUpdate{
				Status:    statusPtr(StatusFailed),
				LastError: strPtr(writeErr.Error()),
			}); err != nil {
				return err
			}
			e.opts.Hooks.OnGiveUp(ctx, rec, writeErr)
			e.opts.Logger.Error(ctx, "record %s has no replay branch: %v", rec.ID, writeErr)
			return nil
		}

		attempt := rec.RetryCount + 1
		next := StatusPending
		if attempt >= e.opts.MaxAttempts {
			next = StatusFailed
		}
		if err := e.mark(ctx, rec.ID, StatusUpdate{
			Status:     statusPtr(next),
			RetryCount: intPtr(attempt),
			LastError:  strPtr(writeErr.Error()),
		}); err != nil {
			return err
		}
		if next == StatusFailed {
			e.opts.Hooks.OnGiveUp(ctx, rec, writeErr)
			e.opts.Logger.Warn(ctx, "record %s failed permanently after %d attempts: %v", rec.ID, attempt, writeErr)
		} else {
			e.opts.Logger.Warn(ctx, "record %s attempt %d/%d failed, halting drain: %v", rec.ID, attempt, e.opts.MaxAttempts, writeErr)
		}
		// Ordering halt: records behind a failing one stay untouched until
		// the next trigger.
		return nil
	}
	return nil
}

func (e *Engine) mark(ctx context.Context, id string, upd StatusUpdate) error {
	if err := e.store.UpdateStatus(ctx, id, upd); err != nil {
		e.opts.Hooks.OnStoreError(ctx, "update_status", id, err)
		return err
	}
	return nil
}

func statusPtr(s Status) *Status { return &s }
func intPtr(n int) *int          { return &n }
func strPtr(s string) *string    { return &s }

// noopLogger discards all engine logs.
type noopLogger struct{}

// Info implements Logger.
func (noopLogger) Info(context.Context, string, ...any) {}

// Warn implements Logger.
func (noopLogger) Warn(context.Context, string, ...any) {}

// Error implements Logger.
func (noopLogger) Error(context.Context, string, ...any) {}
