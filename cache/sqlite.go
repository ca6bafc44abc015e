package cache

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteProvider keeps all named stores in a single SQLite database:
// one row per store in `stores`, one row per entry in `entries`.
type SQLiteProvider struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteProvider creates a provider with the given filename as the db.
// If the file name is empty, a new in-memory db is opened.
func NewSQLiteProvider(filename string) *SQLiteProvider {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS stores (
		name TEXT PRIMARY KEY,
		created_at INTEGER
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		store TEXT NOT NULL,
		key TEXT NOT NULL,
		stored_at INTEGER,
		bytes BLOB,
		PRIMARY KEY (store, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return &SQLiteProvider{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s *SQLiteProvider) Open(name string) (Store, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO stores (name, created_at) VALUES (?, ?)",
		name, time.Now().Unix(),
	)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{provider: s, name: name}, nil
}

func (s *SQLiteProvider) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteProvider) Delete(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("DELETE FROM entries WHERE store = ?", name); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM stores WHERE name = ?", name)
	return err
}

type sqliteStore struct {
	provider *SQLiteProvider
	name     string
}

func (s *sqliteStore) Get(key string) (Entry, bool, error) {
	var entry Entry
	var storedAt int64
	err := s.provider.db.QueryRow(
		"SELECT stored_at, bytes FROM entries WHERE store = ? AND key = ?",
		s.name, key,
	).Scan(&storedAt, &entry.Bytes)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	entry.StoredAt = time.Unix(storedAt, 0)
	return entry, true, nil
}

func (s *sqliteStore) Put(key string, entry Entry) error {
	s.provider.writeMutex.Lock()
	defer s.provider.writeMutex.Unlock()
	// guarded insert so that a write racing a store deletion is dropped
	// instead of resurrecting the store
	_, err := s.provider.db.Exec(
		`INSERT OR REPLACE INTO entries (store, key, stored_at, bytes)
		SELECT ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM stores WHERE name = ?)`,
		s.name, key, entry.StoredAt.Unix(), entry.Bytes, s.name,
	)
	return err
}
