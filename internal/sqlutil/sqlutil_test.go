package sqlutil_test

import (
	"database/sql"
	"testing"

	"github.com/tuwebai/instadetox-outbox/internal/sqlutil"
)

func TestQuoteIdentifier(t *testing.T) {
	t.Parallel()
	if got := sqlutil.QuoteIdentifier(`foo"bar`, `"`); got != `"foo""bar"` {
		t.Fatalf("QuoteIdentifier(%q) = %s, want %s", `foo"bar`, got, `"foo""bar"`)
	}
	if got := sqlutil.QuoteIdentifier("foo`bar", "`"); got != "`foo``bar`" {
		t.Fatalf("QuoteIdentifier mysql = %s, want `foo``bar`", got)
	}
}

func TestStringOrEmpty(t *testing.T) {
	t.Parallel()
	if got := sqlutil.StringOrEmpty(sql.NullString{String: "hello", Valid: true}); got != "hello" {
		t.Fatalf("StringOrEmpty = %q, want %q", got, "hello")
	}
	if got := sqlutil.StringOrEmpty(sql.NullString{}); got != "" {
		t.Fatalf("StringOrEmpty on NULL = %q, want empty", got)
	}
}
