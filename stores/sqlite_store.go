// Package stores provides durable queue store implementations for the
// outbox. SQLite is the on-device deployment; Postgres and MySQL cover
// relay nodes that stage mutations on a server-side database.
package stores

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/internal/sqlutil"
)

// SQLiteStore implements outbox.Store for SQLite databases. This is the
// primary store: a local file that survives app restarts.
type SQLiteStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteTable overrides the default table name ("outbox").
func WithSQLiteTable(name string) SQLiteOption {
	return func(s *SQLiteStore) {
		if name != "" {
			s.table = name
		}
	}
}

// WithSQLiteNow overrides the clock used by SweepExpired.
func WithSQLiteNow(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQLite creates a Store backed by SQLite.
func NewSQLite(db *sql.DB, opts ...SQLiteOption) *SQLiteStore {
	store := &SQLiteStore{
		db:    db,
		table: "outbox",
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Migrate creates the outbox table and its indexes if missing. The on-device
// database has no external migration tooling, so the store owns its schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    owner_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    payload BLOB NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[2]s_status ON %[1]s (status);
CREATE INDEX IF NOT EXISTS idx_%[2]s_created_at ON %[1]s (created_at);`, s.tableIdent(), s.table)
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Enqueue inserts a new pending record.
func (s *SQLiteStore) Enqueue(ctx context.Context, rec outbox.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, owner_id, kind, payload, status, retry_count, last_error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tableIdent())
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, string(rec.Kind), []byte(rec.Payload),
		string(rec.Status), rec.RetryCount, rec.LastError, rec.CreatedAt.UTC())
	if err != nil && isSQLiteDuplicate(err) {
		return fmt.Errorf("%w: %s", outbox.ErrDuplicateID, rec.ID)
	}
	return err
}

// ListPending returns non-failed records in FIFO order, created_at first and
// insertion sequence as the deterministic tie-break.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]outbox.Record, error) {
	query := fmt.Sprintf(`
SELECT id, owner_id, kind, payload, status, retry_count, last_error, created_at
FROM %s
WHERE status != 'failed'
ORDER BY created_at ASC, seq ASC`, s.tableIdent())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) { _ = rows.Close() }(rows)
	return scanRecords(rows)
}

// UpdateStatus merges the set fields into the record; missing id is a no-op.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, upd outbox.StatusUpdate) error {
	sets, args := statusUpdateClause(upd, func(int) string { return "?" })
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.tableIdent(), strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, query, append(args, id)...)
	return err
}

// Dequeue deletes the record; deleting a missing id is not an error.
func (s *SQLiteStore) Dequeue(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableIdent())
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// SweepExpired deletes every record older than maxAge, any status.
func (s *SQLiteStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", s.tableIdent())
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) tableIdent() string {
	return sqlutil.QuoteIdentifier(s.table, `"`)
}

// isSQLiteDuplicate detects a unique-constraint violation from
// modernc.org/sqlite, which surfaces constraint errors by message text.
func isSQLiteDuplicate(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanRecords reads outbox rows in the column order every store selects.
func scanRecords(rows *sql.Rows) ([]outbox.Record, error) {
	var records []outbox.Record
	for rows.Next() {
		var (
			rec       outbox.Record
			kind      string
			status    string
			payload   []byte
			lastError sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &kind, &payload, &status, &rec.RetryCount, &lastError, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = outbox.Kind(kind)
		rec.Status = outbox.Status(status)
		rec.Payload = append([]byte(nil), payload...)
		rec.LastError = sqlutil.StringOrEmpty(lastError)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// statusUpdateClause builds the SET fragment for a partial status update.
// placeholder maps the 1-based argument position to the dialect's marker.
func statusUpdateClause(upd outbox.StatusUpdate, placeholder func(pos int) string) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	if upd.Status != nil {
		args = append(args, string(*upd.Status))
		sets = append(sets, "status = "+placeholder(len(args)))
	}
	if upd.RetryCount != nil {
		args = append(args, *upd.RetryCount)
		sets = append(sets, "retry_count = "+placeholder(len(args)))
	}
	if upd.LastError != nil {
		args = append(args, *upd.LastError)
		sets = append(sets, "last_error = "+placeholder(len(args)))
	}
	return sets, args
}
