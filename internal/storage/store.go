package storage

// Record is one persisted item within a scope.
type Record struct {
	ID      string
	Payload []byte
}

// Store is the persistence boundary the session and app depend on.
// Implementations are best-effort: callers treat a failed write as a
// lost metadata update, never as a reason to roll back in-memory state.
type Store interface {
	// Load returns all records in the scope, ordered by id. Ids are
	// time-keyed for appended records, so this is insertion order.
	Load() ([]Record, error)

	// GetOne returns the record with the given id, or nil if absent.
	GetOne(id string) (*Record, error)

	// Add inserts a payload. With an empty id a millisecond time key
	// is generated; concurrent inserts in the same millisecond get a
	// uniquifying suffix. Returns the id used.
	Add(payload []byte, id string) (string, error)

	// Update upserts the payload under the given id.
	Update(id string, payload []byte) error

	// Remove deletes one record. Removing an absent id is a no-op.
	Remove(id string) error

	// RemoveFirst deletes the record with the smallest id, mirroring
	// window eviction.
	RemoveFirst() error

	// RemoveAll deletes every record in the scope.
	RemoveAll() error

	// ClearUnknown deletes every record whose id is not in known.
	// Used to sweep records orphaned by a previous session.
	ClearUnknown(known []string) error
}
