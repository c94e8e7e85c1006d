package outbox

import (
	"context"
	"time"
)

// Hooks receives engine events for metrics; all methods must be cheap and
// non-blocking. Implementors can wrap expvar/prometheus/etc.
type Hooks interface {
	// OnReplaySuccess fires after a record is dequeued, including the
	// conflict-as-success path.
	OnReplaySuccess(ctx context.Context, rec Record)
	// OnReplayFailure fires on a failed backend write, before retry/fail
	// handling decides the record's fate.
	OnReplayFailure(ctx context.Context, rec Record, err error)
	// OnGiveUp fires when a record turns terminally failed.
	OnGiveUp(ctx context.Context, rec Record, err error)
	// OnStoreError fires when a durable-store operation fails.
	OnStoreError(ctx context.Context, op string, id string, err error)
	// OnDrain fires at the end of each drain pass with the number of
	// records attempted and the pass duration.
	OnDrain(ctx context.Context, attempted int, d time.Duration)
}

// noopHooks discards all engine events.
type noopHooks struct{}

// OnReplaySuccess implements Hooks.
func (noopHooks) OnReplaySuccess(context.Context, Record) {}

// OnReplayFailure implements Hooks.
func (noopHooks) OnReplayFailure(context.Context, Record, error) {}

// OnGiveUp implements Hooks.
func (noopHooks) OnGiveUp(context.Context, Record, error) {}

// OnStoreError implements Hooks.
func (noopHooks) OnStoreError(context.Context, string, string, error) {}

// OnDrain implements Hooks.
func (noopHooks) OnDrain(context.Context, int, time.Duration) {}
