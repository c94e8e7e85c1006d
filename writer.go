package outbox

import (
	"context"
	"errors"
	"fmt"
)

// ErrConflict reports that the backend already holds a row with the record's
// primary key. The engine treats it as success: the write landed on an
// earlier attempt and the replay is a duplicate.
var ErrConflict = errors.New("outbox: row already exists")

// ErrUnsupportedKind reports that a writer has no replay branch for the
// record's kind. The engine marks such records failed immediately instead of
// burning the retry budget on attempts that can never succeed.
var ErrUnsupportedKind = errors.New("outbox: unsupported mutation kind")

// Writer replays one mutation against the backend. A nil error or an error
// matching ErrConflict means the write is durably applied; any other error
// counts as a failed attempt.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, rec Record) error

// Write implements Writer.
func (f WriterFunc) Write(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Mux routes records to a writer by kind. Kinds without an entry surface as
// ErrUnsupportedKind, so a deployment that replays uploads through a
// different mechanism simply leaves KindUpload unmapped.
type Mux map[Kind]Writer

// Write implements Writer by dispatching on the record's kind.
func (m Mux) Write(ctx context.Context, rec Record) error {
	w, ok := m[rec.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedKind, rec.Kind)
	}
	return w.Write(ctx, rec)
}
