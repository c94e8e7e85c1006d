// Package sqlutil holds small helpers shared by the dialect stores.
package sqlutil

import (
	"database/sql"
	"strings"
)

// QuoteIdentifier wraps name in the dialect's identifier quote, doubling any
// embedded quote characters.
func QuoteIdentifier(name, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

// StringOrEmpty unwraps a nullable column into its value, NULL as "".
func StringOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
