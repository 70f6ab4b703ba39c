package postgres

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgxpool
	Table   string   // fully qualified target table name, e.g. "public.yellow_tripdata"
	Columns []string // ordered columns for COPY
}
