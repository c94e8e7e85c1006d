package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tuwebai/instadetox-outbox"
)

func TestControllerDrainsOnStartup(t *testing.T) {
	t.Parallel()
	drainer := newSpyDrainer()
	ctrl := outbox.NewController(drainer, newFakeStore(), outbox.ControllerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
	}()

	waitFor(t, drainer.drained)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if got := drainer.count(); got != 1 {
		t.Fatalf("drains = %d, want 1", got)
	}
}

func TestControllerDrainsOnOnline(t *testing.T) {
	t.Parallel()
	drainer := newSpyDrainer()
	online := make(chan struct{}, 1)
	ctrl := outbox.NewController(drainer, newFakeStore(), outbox.ControllerOptions{Online: online})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
	}()

	waitFor(t, drainer.drained) // startup drain
	online <- struct{}{}
	waitFor(t, drainer.drained) // connectivity-restored drain
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if got := drainer.count(); got != 2 {
		t.Fatalf("drains = %d, want 2", got)
	}
}

func TestControllerPeriodicDrain(t *testing.T) {
	t.Parallel()
	drainer := newSpyDrainer()
	ctrl := outbox.NewController(drainer, newFakeStore(), outbox.ControllerOptions{
		DrainInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
	}()

	waitFor(t, drainer.drained) // startup
	waitFor(t, drainer.drained) // first tick
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestControllerRetentionSweep(t *testing.T) {
	t.Parallel()
	stale := pendingRecord("old", outbox.KindMessage, time.Now().UTC().Add(-48*time.Hour))
	stale.Status = outbox.StatusFailed
	fresh := pendingRecord("new", outbox.KindMessage, time.Now().UTC())
	store := newFakeStore(stale, fresh)

	drainer := newSpyDrainer()
	ctrl := outbox.NewController(drainer, store, outbox.ControllerOptions{
		Retention:     24 * time.Hour,
		SweepInterval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := store.lookup("old"); !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("stale record not swept")
		case <-time.After(time.Millisecond):
		}
	}
	// The sweep is age-based, any status; the fresh record stays.
	if _, ok := store.lookup("new"); !ok {
		t.Fatal("fresh record swept by mistake")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
}

func TestControllerStopsWhenOnlineCloses(t *testing.T) {
	t.Parallel()
	drainer := newSpyDrainer()
	online := make(chan struct{})
	ctrl := outbox.NewController(drainer, newFakeStore(), outbox.ControllerOptions{Online: online})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Run(ctx)
	}()

	waitFor(t, drainer.drained)
	close(online) // signal source torn down; Run must keep serving ctx
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
}

// spyDrainer counts Drain invocations and signals each one.
type spyDrainer struct {
	mu      sync.Mutex
	n       int
	drained chan struct{}
}

func newSpyDrainer() *spyDrainer {
	return &spyDrainer{drained: make(chan struct{}, 16)}
}

func (d *spyDrainer) Drain(context.Context) error {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
	select {
	case d.drained <- struct{}{}:
	default:
	}
	return nil
}

func (d *spyDrainer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}
