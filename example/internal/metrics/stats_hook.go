package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tuwebai/instadetox-outbox"
)

// StatsHook publishes basic outbox counters via expvar.
type StatsHook struct {
	successes      atomic.Int64
	failures       atomic.Int64
	giveUps        atomic.Int64
	storeErrors    atomic.Int64
	drains         atomic.Int64
	attempted      atomic.Int64
	drainLatencyNs atomic.Int64
}

// NewStatsHook registers an expvar entry named "<prefix>_stats".
func NewStatsHook(prefix string) *StatsHook {
	if prefix == "" {
		prefix = "outbox"
	}
	h := &StatsHook{}
	expvar.Publish(fmt.Sprintf("%s_stats", prefix), expvar.Func(func() any {
		return h.snapshot()
	}))
	return h
}

// OnReplaySuccess increments applied mutations, conflicts included.
func (h *StatsHook) OnReplaySuccess(_ context.Context, _ outbox.Record) {
	h.successes.Add(1)
}

// OnReplayFailure increments failed attempts before retry/fail handling.
func (h *StatsHook) OnReplayFailure(_ context.Context, _ outbox.Record, _ error) {
	h.failures.Add(1)
}

// OnGiveUp increments permanently failed records.
func (h *StatsHook) OnGiveUp(_ context.Context, _ outbox.Record, _ error) {
	h.giveUps.Add(1)
}

// OnStoreError increments the local-store error counter.
func (h *StatsHook) OnStoreError(_ context.Context, _ string, _ string, _ error) {
	h.storeErrors.Add(1)
}

// OnDrain records drain passes, records attempted, and pass durations.
func (h *StatsHook) OnDrain(_ context.Context, attempted int, d time.Duration) {
	h.drains.Add(1)
	h.attempted.Add(int64(attempted))
	h.drainLatencyNs.Add(d.Nanoseconds())
}

func (h *StatsHook) snapshot() map[string]int64 {
	return map[string]int64{
		"replay_success":   h.successes.Load(),
		"replay_failure":   h.failures.Load(),
		"give_ups":         h.giveUps.Load(),
		"store_errors":     h.storeErrors.Load(),
		"drains":           h.drains.Load(),
		"attempted":        h.attempted.Load(),
		"drain_latency_ns": h.drainLatencyNs.Load(),
	}
}
