// Package storage is the local persistence layer: a prefix-scoped
// key-value store over a SQL database. Row metadata, layout documents
// and tab liveness records all live here, each under its own scope.
package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DB wraps one open database and hands out prefix-scoped stores.
type DB struct {
	path    string
	conn    *sql.DB
	dialect Dialect
}

func open(d Dialect, pathOrConnStr string) (*DB, error) {
	conn, err := sql.Open(d.DriverName(), d.DSN(pathOrConnStr))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db := &DB{path: pathOrConnStr, conn: conn, dialect: d}
	if err := db.createSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

func (db *DB) createSchema() error {
	if _, err := db.conn.Exec(db.dialect.CreateTableSQL()); err != nil {
		return fmt.Errorf("creating records table: %w", err)
	}
	if _, err := db.conn.Exec(db.dialect.CreateIndexSQL()); err != nil {
		return fmt.Errorf("creating prefix index: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the file path or connection string the database was
// opened with.
func (db *DB) Path() string {
	return db.path
}

// Conn returns the underlying *sql.DB connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Scope returns a Store bound to one record prefix. Scopes sharing a
// prefix see the same records.
func (db *DB) Scope(prefix string) *Scope {
	return &Scope{db: db, prefix: prefix}
}

// Scope implements Store over one prefix of the records table.
type Scope struct {
	db     *DB
	prefix string

	mu           sync.Mutex
	lastInsertAt string
	sameInserts  int
}

var _ Store = (*Scope)(nil)

func (s *Scope) ph(i int) string { return s.db.dialect.Placeholder(i) }

// Load returns all records in the scope ordered by id.
func (s *Scope) Load() ([]Record, error) {
	rows, err := s.db.conn.Query(
		"SELECT id, payload FROM records WHERE prefix = "+s.ph(1)+" ORDER BY id",
		s.prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var payload string
		if err := rows.Scan(&r.ID, &payload); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetOne returns the record with the given id, or nil if absent.
func (s *Scope) GetOne(id string) (*Record, error) {
	var payload string
	err := s.db.conn.QueryRow(
		"SELECT payload FROM records WHERE prefix = "+s.ph(1)+" AND id = "+s.ph(2),
		s.prefix, id,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Payload: []byte(payload)}, nil
}

// Add inserts a payload, generating a millisecond time key when id is
// empty. Two inserts landing in the same millisecond get a counter
// suffix so ids stay unique and ordered.
func (s *Scope) Add(payload []byte, id string) (string, error) {
	if id == "" {
		s.mu.Lock()
		k := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if k == s.lastInsertAt {
			s.sameInserts++
			id = k + "." + strconv.Itoa(s.sameInserts)
		} else {
			s.sameInserts = 0
			id = k
		}
		s.lastInsertAt = k
		s.mu.Unlock()
	}

	_, err := s.db.conn.Exec(s.db.dialect.UpsertSQL(),
		s.prefix, id, string(payload), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("adding record: %w", err)
	}
	return id, nil
}

// Update upserts the payload under the given id.
func (s *Scope) Update(id string, payload []byte) error {
	_, err := s.db.conn.Exec(s.db.dialect.UpsertSQL(),
		s.prefix, id, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	return nil
}

// Remove deletes one record.
func (s *Scope) Remove(id string) error {
	_, err := s.db.conn.Exec(
		"DELETE FROM records WHERE prefix = "+s.ph(1)+" AND id = "+s.ph(2),
		s.prefix, id,
	)
	return err
}

// RemoveFirst deletes the record with the smallest id.
func (s *Scope) RemoveFirst() error {
	var id sql.NullString
	err := s.db.conn.QueryRow(
		"SELECT MIN(id) FROM records WHERE prefix = "+s.ph(1),
		s.prefix,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if !id.Valid {
		return nil
	}
	return s.Remove(id.String)
}

// RemoveAll deletes every record in the scope.
func (s *Scope) RemoveAll() error {
	_, err := s.db.conn.Exec(
		"DELETE FROM records WHERE prefix = "+s.ph(1),
		s.prefix,
	)
	return err
}

// ClearUnknown deletes every record in the scope whose id is not in
// known. With an empty known list the whole scope is swept.
func (s *Scope) ClearUnknown(known []string) error {
	if len(known) == 0 {
		return s.RemoveAll()
	}

	placeholders := make([]string, len(known))
	args := make([]interface{}, 0, len(known)+1)
	args = append(args, s.prefix)
	for i, id := range known {
		placeholders[i] = s.ph(i + 2)
		args = append(args, id)
	}

	_, err := s.db.conn.Exec(
		"DELETE FROM records WHERE prefix = "+s.ph(1)+
			" AND id NOT IN ("+strings.Join(placeholders, ", ")+")",
		args...,
	)
	return err
}
