package outbox

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateID is returned by Enqueue when a record with the same id is
// already queued. Callers must mint a fresh id per logical mutation, so this
// signals a programmer error rather than a retryable condition.
var ErrDuplicateID = errors.New("outbox: record id already queued")

// StatusUpdate describes a partial update to a queued record. Only non-nil
// fields are written; the merge is last-write-wins with no optimistic
// locking, since the engine is the sole mutator.
type StatusUpdate struct {
	Status     *Status
	RetryCount *int
	LastError  *string
}

// Store is the durable queue of pending mutations. Implementations must
// survive process restarts and keep each operation a single atomic row
// read/write.
type Store interface {
	// Enqueue inserts a new pending record. Returns ErrDuplicateID if a
	// record with the same id already exists.
	Enqueue(ctx context.Context, rec Record) error
	// ListPending returns every record whose status is not failed, ordered
	// ascending by created_at with ties broken by insertion sequence. This
	// ordering is the FIFO contract the engine relies on.
	ListPending(ctx context.Context) ([]Record, error)
	// UpdateStatus merges the set fields of upd into the record. Updating a
	// record that no longer exists is a no-op.
	UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error
	// Dequeue permanently deletes the record. Deleting a missing id is not
	// an error.
	Dequeue(ctx context.Context, id string) error
	// SweepExpired deletes every record, regardless of status, whose
	// created_at is older than maxAge before now. Returns the number of
	// rows removed. Intended for a low-frequency maintenance timer, not the
	// retry path.
	SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}
