package sessionstore

import "sync"

// Record is a persisted session for one role: the bearer token and the
// profile the backend handed back with it. Token and profile are always
// written together; a missing record means "not authenticated" for that role.
type Record struct {
	PrincipalID string
	Token       string
	Profile     map[string]any
}

// Store persists sessions under role-scoped keys so an admin and a member
// session can coexist on the same machine.
type Store interface {
	// Load returns the record for a role, or nil when none is stored.
	Load(role string) (*Record, error)
	Save(role string, rec Record) error
	Clear(role string) error
}

// MemStore is an in-memory Store. It backs tests and callers that want a
// session for the lifetime of the process only.
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

func (s *MemStore) Load(role string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[role]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemStore) Save(role string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[role] = rec
	return nil
}

func (s *MemStore) Clear(role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, role)
	return nil
}
