package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func testProviders(t *testing.T) map[string]Provider {
	t.Helper()
	return map[string]Provider{
		"memory": NewMemProvider(),
		"sqlite": NewSQLiteProvider(filepath.Join(t.TempDir(), "cache.db")),
	}
}

func TestOpenCreatesStore(t *testing.T) {
	for name, provider := range testProviders(t) {
		if _, err := provider.Open("app-cache-v1"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		names, err := provider.Names()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(names) != 1 || names[0] != "app-cache-v1" {
			t.Fatalf("%s: names are %v", name, names)
		}
	}
}

func TestPutGet(t *testing.T) {
	for name, provider := range testProviders(t) {
		store, err := provider.Open("app-cache-v1")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		entry := Entry{StoredAt: time.Now(), Bytes: []byte("stored response")}
		if err := store.Put("https://app.example.com/", entry); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, ok, err := store.Get("https://app.example.com/")
		if err != nil || !ok {
			t.Fatalf("%s: ok=%v err=%v", name, ok, err)
		}
		if string(got.Bytes) != "stored response" {
			t.Fatalf("%s: bytes are %s", name, got.Bytes)
		}
	}
}

func TestGetMissingIsNotAnError(t *testing.T) {
	for name, provider := range testProviders(t) {
		store, err := provider.Open("app-cache-v1")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		_, ok, err := store.Get("https://app.example.com/absent")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if ok {
			t.Fatalf("%s: found an entry that was never stored", name)
		}
	}
}

func TestDeleteRemovesStoreAndEntries(t *testing.T) {
	for name, provider := range testProviders(t) {
		store, err := provider.Open("app-cache-v1")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := store.Put("key", Entry{StoredAt: time.Now(), Bytes: []byte("x")}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := provider.Delete("app-cache-v1"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		names, err := provider.Names()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(names) != 0 {
			t.Fatalf("%s: names are %v", name, names)
		}
		// reopening must yield an empty store
		store, err = provider.Open("app-cache-v1")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, ok, _ := store.Get("key"); ok {
			t.Fatalf("%s: entry survived store deletion", name)
		}
	}
}

func TestPutToDeletedStoreIsDropped(t *testing.T) {
	for name, provider := range testProviders(t) {
		store, err := provider.Open("app-cache-v1")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := provider.Delete("app-cache-v1"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		// stale handle: the write must neither fail nor resurrect the store
		if err := store.Put("key", Entry{StoredAt: time.Now(), Bytes: []byte("x")}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		names, err := provider.Names()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(names) != 0 {
			t.Fatalf("%s: names are %v", name, names)
		}
	}
}

func TestDeleteMissingStore(t *testing.T) {
	for name, provider := range testProviders(t) {
		if err := provider.Delete("never-created"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}
