package stores_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/stores"
	"github.com/tuwebai/instadetox-outbox/test/database"
)

func TestMySQLStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	db := database.OpenMySQL(t)
	_, _ = db.ExecContext(ctx, `TRUNCATE outbox`)

	store := stores.NewMySQL(db)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Enqueue(ctx, queueRecord("m1", base)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(ctx, queueRecord("m2", base.Add(time.Second))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Enqueue(ctx, queueRecord("m1", base)); !errors.Is(err, outbox.ErrDuplicateID) {
		t.Fatalf("duplicate Enqueue error = %v, want ErrDuplicateID", err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "m1" || pending[1].ID != "m2" {
		t.Fatalf("pending = %v, want [m1 m2]", ids(pending))
	}

	retrying := outbox.StatusRetrying
	if err := store.UpdateStatus(ctx, "m1", outbox.StatusUpdate{Status: &retrying}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	pending, err = store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if pending[0].Status != outbox.StatusRetrying {
		t.Fatalf("status = %q, want retrying", pending[0].Status)
	}

	if err := store.Dequeue(ctx, "m1"); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	removed, err := store.SweepExpired(ctx, time.Nanosecond)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}
