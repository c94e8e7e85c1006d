package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tuwebai/instadetox-outbox"
)

func TestStatsHookTracksCounters(t *testing.T) {
	hook := NewStatsHook(fmt.Sprintf("test_%d", time.Now().UnixNano()))
	rec := outbox.Record{ID: "m1"}

	hook.OnReplaySuccess(context.Background(), rec)
	hook.OnReplayFailure(context.Background(), rec, fmt.Errorf("boom"))
	hook.OnGiveUp(context.Background(), rec, fmt.Errorf("fail"))
	hook.OnStoreError(context.Background(), "dequeue", rec.ID, fmt.Errorf("db down"))
	hook.OnDrain(context.Background(), 2, time.Millisecond)

	snap := hook.snapshot()
	if snap["replay_success"] != 1 || snap["replay_failure"] != 1 {
		t.Fatalf("replay counters = %+v", snap)
	}
	if snap["give_ups"] != 1 {
		t.Fatalf("give_ups = %d, want 1", snap["give_ups"])
	}
	if snap["store_errors"] != 1 {
		t.Fatalf("store_errors = %d, want 1", snap["store_errors"])
	}
	if snap["drains"] != 1 || snap["attempted"] != 2 {
		t.Fatalf("drain counters = %+v", snap)
	}
	if snap["drain_latency_ns"] <= 0 {
		t.Fatalf("drain_latency_ns = %d, want > 0", snap["drain_latency_ns"])
	}
}
