package cache

import (
	"sort"
	"sync"
)

// MemProvider is an in-memory provider for tests and ephemeral gateways.
type MemProvider struct {
	mutex  *sync.RWMutex
	stores map[string]map[string]Entry
}

func NewMemProvider() *MemProvider {
	return &MemProvider{
		mutex:  &sync.RWMutex{},
		stores: make(map[string]map[string]Entry),
	}
}

func (m *MemProvider) Open(name string) (Store, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.stores[name]; !ok {
		m.stores[name] = make(map[string]Entry)
	}
	return &memStore{provider: m, name: name}, nil
}

func (m *MemProvider) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.stores))
	for name := range m.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemProvider) Delete(name string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.stores, name)
	return nil
}

type memStore struct {
	provider *MemProvider
	name     string
}

func (s *memStore) Get(key string) (Entry, bool, error) {
	s.provider.mutex.RLock()
	defer s.provider.mutex.RUnlock()
	entries, ok := s.provider.stores[s.name]
	if !ok {
		return Entry{}, false, nil
	}
	entry, ok := entries[key]
	return entry, ok, nil
}

func (s *memStore) Put(key string, entry Entry) error {
	s.provider.mutex.Lock()
	defer s.provider.mutex.Unlock()
	entries, ok := s.provider.stores[s.name]
	if !ok {
		// store deleted after this handle was opened
		return nil
	}
	entries[key] = entry
	return nil
}
