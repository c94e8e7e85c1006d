package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tuwebai/instadetox-outbox"
	"github.com/tuwebai/instadetox-outbox/internal/sqlutil"
)

// PostgresStore implements outbox.Store on Postgres.
type PostgresStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresTable overrides the default table name ("outbox").
func WithPostgresTable(table string) PostgresOption {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

// WithPostgresNow overrides the clock used by SweepExpired.
func WithPostgresNow(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPostgres creates a Store backed by Postgres.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	store := &PostgresStore{
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
func (s *PostgresStore) Enqueue(ctx context.Context, rec outbox.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, owner_id, kind, payload, status, retry_count, last_error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, s.tableIdent())
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, string(rec.Kind), []byte(rec.Payload),
		string(rec.Status), rec.RetryCount, rec.LastError, rec.CreatedAt.UTC())
	if err != nil && isPostgresDuplicate(err) {
		return fmt.Errorf("%w: %s", outbox.ErrDuplicateID, rec.ID)
	}
	return err
}

// ListPending returns non-failed records in FIFO order.
func (s *PostgresStore) ListPending(ctx context.Context) ([]outbox.Record, error) {
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
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, upd outbox.StatusUpdate) error {
	sets, args := statusUpdateClause(upd, func(pos int) string { return fmt.Sprintf("$%d", pos) })
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", s.tableIdent(), strings.Join(sets, ", "), len(args)+1)
	_, err := s.db.ExecContext(ctx, query, append(args, id)...)
	return err
}

// Dequeue deletes the record; deleting a missing id is not an error.
func (s *PostgresStore) Dequeue(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableIdent())
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// SweepExpired deletes every record older than maxAge, any status.
func (s *PostgresStore) SweepExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	query := fmt.Sprintf("DELETE FROM %s WHERE created_at < $1", s.tableIdent())
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) tableIdent() string {
	return sqlutil.QuoteIdentifier(s.table, `"`)
}

// isPostgresDuplicate detects a unique violation (SQLSTATE 23505).
func isPostgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
