package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/internal/sqlutil"
)

// MySQLStore implements outbox.Store on MySQL.
type MySQLStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// MySQLOption configures a MySQLStore.
type MySQLOption func(*MySQLStore)

// WithMySQLTable overrides the default table name ("outbox").
func WithMySQLTable(table string) MySQLOption {
	return func(s *MySQLStore) {
		if table != "" {
			s.table = table
		}
	}
}

// WithMySQLNow overrides the clock used by SweepExpired.
func WithMySQLNow(now func() time.Time) MySQLOption {
	return func(s *MySQLStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMySQL creates a Store backed by MySQL.
func NewMySQL(db *sql.DB, opts ...MySQLOption) *MySQLStore {
	store := &MySQLStore{
		db:    db,
		table: "outbox",
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Enqueue inserts a new pending record.
func (s *MySQLStore) Enqueue(ctx context.Context, rec outbox.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, owner_id, kind, payload, status, retry_count, last_error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.tableIdent())
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, string(rec.Kind), []byte(rec.Payload),
		string(rec.Status), rec.RetryCount, rec.LastError, rec.CreatedAt.UTC())
	if err != nil && isMySQLDuplicate(err) {
		return fmt.Errorf("%w: %s", outbox.ErrDuplicateID, rec.ID)
	}
	return err
}

// ListPending returns non-failed records in FIFO order.
func (s *MySQLStore) ListPending(ctx context.Context) ([]outbox.Record, error) {
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
func (s *MySQLStore) UpdateStatus(ctx context.Context, id string, upd outbox.StatusUpdate) error {
	sets, args := statusUpdateClause(upd, func(int) string { return "?" })
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.tableIdent(), strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, query, append(args, id)...)
	return err
}

// Dequeue deletes the record; deleting a missing id is not an error.
func (s *MySQLStore) Dequeue(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableIdent())
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// SweepExpired deletes every record older than maxAge, any status.
func (s *MySQLStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", s.tableIdent())
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *MySQLStore) tableIdent() string {
	return sqlutil.QuoteIdentifier(s.table, "`")
}

// isMySQLDuplicate detects a duplicate-entry error (code 1062).
func isMySQLDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
