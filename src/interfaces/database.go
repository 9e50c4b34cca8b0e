package interfaces

// -----------------------------------------------------------------------------
// IKeyValueStore defines the contract for the persisted local store.
// -----------------------------------------------------------------------------

type IKeyValueStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// -----------------------------------------------------------------------------

	// Put inserts or replaces the value for key.
	Put(key string, value []byte) error

	// -----------------------------------------------------------------------------

	Delete(key string) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
