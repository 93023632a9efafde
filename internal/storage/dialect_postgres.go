package storage

import "fmt"

// PostgresDialect implements the Dialect interface for PostgreSQL
// databases, using the pgx stdlib driver.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string             { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }

func (d *PostgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS records (
		prefix TEXT NOT NULL,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (prefix, id)
	)`
}

func (d *PostgresDialect) CreateIndexSQL() string {
	return "CREATE INDEX IF NOT EXISTS records_prefix_idx ON records (prefix)"
}

func (d *PostgresDialect) UpsertSQL() string {
	return `INSERT INTO records (prefix, id, payload, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (prefix, id) DO UPDATE SET payload = excluded.payload`
}
