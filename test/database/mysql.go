package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// OpenMySQL connects to the database named by MYSQL_DSN and ensures the
// outbox table. The DSN needs parseTime=true. Tests that call it skip when
// the env var is unset.
func OpenMySQL(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		t.Skip("MYSQL_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("open mysql (%s): %v", dsn, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping mysql (%s): %v", dsn, err)
	}
	schema := `CREATE TABLE IF NOT EXISTS outbox (
        seq BIGINT AUTO_INCREMENT PRIMARY KEY,
        id VARCHAR(64) NOT NULL UNIQUE,
        owner_id VARCHAR(64) NOT NULL,
        kind VARCHAR(16) NOT NULL,
        payload BLOB NOT NULL,
        status VARCHAR(16) NOT NULL DEFAULT 'pending',
        retry_count INT NOT NULL DEFAULT 0,
        last_error TEXT NOT NULL,
        created_at TIMESTAMP(6) NOT NULL,
        INDEX idx_outbox_status (status),
        INDEX idx_outbox_created_at (created_at)
    )`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}
