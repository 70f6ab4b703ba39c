// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:taxi.db?_pragma=busy_timeout(5000)"
	//   "taxi.db"
	DSN string

	// Table is the target table name. "main.trips" style names are accepted
	// and quoted per segment.
	Table string

	// Columns is the ordered list of destination columns. Empty means the
	// columns passed to CopyFrom are used as-is.
	Columns []string
}
