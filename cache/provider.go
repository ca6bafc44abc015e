package cache

import "time"

// Provider gives access to named stores. Each store is an independent
// key-value collection of stored HTTP responses. Stores are created
// lazily on first open and live until explicitly deleted; entries are
// kept until their store is deleted.
//
// Implementations must be thread-safe!
type Provider interface {
	// Open returns a handle to the store with the given name,
	// creating the store if it does not exist yet.
	Open(name string) (Store, error)
	// Names returns the names of all stores, including empty ones.
	Names() ([]string, error)
	// Delete removes the named store and all of its entries.
	// Deleting a store that does not exist is not an error.
	Delete(name string) error
}

// Store is a handle to one named store.
type Store interface {
	// Get returns the entry for the given key, if it exists.
	// It also returns a boolean indicating whether the key was found;
	// a missing key is not an error.
	Get(key string) (Entry, bool, error)
	// Put stores the entry under the given key, overwriting any
	// previous entry. Writes to a deleted store are dropped.
	Put(key string, entry Entry) error
}

// Entry is a single stored response.
type Entry struct {
	StoredAt time.Time
	Bytes    []byte
}
