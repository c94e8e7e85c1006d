package outbox

import (
	"context"
	"time"
)

// Drainer is the slice of Engine the controller needs.
type Drainer interface {
	Drain(ctx context.Context) error
}

// ControllerOptions configure the trigger controller.
type ControllerOptions struct {
	// Online delivers connectivity-restored events; each event triggers one
	// drain. Nil disables the connectivity trigger.
	Online <-chan struct{}
	// DrainInterval adds a periodic drain trigger. Zero (the default) keeps
	// replay purely event-driven, which is the core contract; intervals are
	// a caller policy choice.
	DrainInterval time.Duration
	// Retention is the age past which any record, whatever its status, is
	// removed by the maintenance sweep. Zero disables sweeping.
	Retention time.Duration
	// SweepInterval is how often the sweep runs.
	SweepInterval time.Duration
	// Logger emits controller logs.
	Logger Logger
}

func (o *ControllerOptions) setDefaults() {
	if o.Retention > 0 && o.SweepInterval <= 0 {
		o.SweepInterval = time.Hour
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
}

// Controller invokes the engine at process start and whenever connectivity
// is restored, without a continuously running retry loop. Triggers that fire
// while a drain is active are dropped by the engine's guard, never queued;
// the next natural trigger picks up remaining work.
type Controller struct {
	engine   Drainer
	store    Store
	opts     ControllerOptions
	instance string
}

// NewController wires a drainer and store with the provided options.
func NewController(engine Drainer, store Store, opts ControllerOptions) *Controller {
	opts.setDefaults()
	return &Controller{
		engine:   engine,
		store:    store,
		opts:     opts,
		instance: randomInstanceID(),
	}
}

// Run drains once on startup, then reacts to triggers until the context is
// cancelled. Drain errors are logged, never returned: a failed pass leaves
// the queue intact for the next trigger.
func (c *Controller) Run(ctx context.Context) error {
	c.drain(ctx, "startup")

	var drainTick <-chan time.Time
	if c.opts.DrainInterval > 0 {
		t := time.NewTicker(c.opts.DrainInterval)
		defer t.Stop()
		drainTick = t.C
	}
	var sweepTick <-chan time.Time
	if c.opts.Retention > 0 {
		t := time.NewTicker(c.opts.SweepInterval)
		defer t.Stop()
		sweepTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-c.opts.Online:
			if !ok {
				// Signal source closed; fall back to remaining triggers.
				c.opts.Online = nil
				continue
			}
			c.drain(ctx, "online")
		case <-drainTick:
			c.drain(ctx, "interval")
		case <-sweepTick:
			c.sweep(ctx)
		}
	}
}

func (c *Controller) drain(ctx context.Context, trigger string) {
	if err := c.engine.Drain(ctx); err != nil {
		c.opts.Logger.Error(ctx, "%s: %s drain aborted: %v", c.instance, trigger, err)
	}
}

func (c *Controller) sweep(ctx context.Context) {
	n, err := c.store.SweepExpired(ctx, c.opts.Retention)
	if err != nil {
		c.opts.Logger.Error(ctx, "%s: retention sweep failed: %v", c.instance, err)
		return
	}
	if n > 0 {
		c.opts.Logger.Info(ctx, "%s: retention sweep removed %d records", c.instance, n)
	}
}
