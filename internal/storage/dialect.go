package storage

// Dialect abstracts the database-specific SQL for the records table.
// SQLite is the local-first default; PostgreSQL serves shared setups.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN returns the data source name for opening a connection.
	// For SQLite this is the file path; for PostgreSQL a connection string.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// CreateTableSQL returns the DDL for the records table.
	CreateTableSQL() string

	// CreateIndexSQL returns the DDL for the prefix lookup index.
	CreateIndexSQL() string

	// UpsertSQL returns the parameterized insert-or-replace statement
	// with parameters (prefix, id, payload, created_at).
	UpsertSQL() string
}
