package storage

// SQLiteDialect implements the Dialect interface for SQLite databases.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string             { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }

func (d *SQLiteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS records (
		prefix TEXT NOT NULL,
		id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (prefix, id)
	)`
}

func (d *SQLiteDialect) CreateIndexSQL() string {
	return "CREATE INDEX IF NOT EXISTS records_prefix_idx ON records (prefix)"
}

func (d *SQLiteDialect) UpsertSQL() string {
	return `INSERT INTO records (prefix, id, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (prefix, id) DO UPDATE SET payload = excluded.payload`
}
