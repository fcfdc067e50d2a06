// Package repositories provides the SQLite persistence layer: song mapping
// attempts, playlist links, and sync history.
//
// All repositories use plain database/sql over the schema created by the
// embedded migrations in internal/shared.
package repositories

import "database/sql"

// nullString wraps a possibly-empty string for nullable columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// fromNull unwraps a nullable column into a plain string.
func fromNull(s sql.NullString) string {
	if s.Valid {
		return s.String
	}
	return ""
}
