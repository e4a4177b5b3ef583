package filters

import "sync"

// Store holds the active filter sequence of one dashboard view.
type Store interface {
	Filters() []Record
	ReplaceFilters(records []Record)
	AppendFilters(records []Record)
	SetParsed(parsed bool)
	Parsed() bool
}

type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	parsed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Filters() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryStore) ReplaceFilters(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append([]Record(nil), records...)
}

func (s *MemoryStore) AppendFilters(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
}

func (s *MemoryStore) SetParsed(parsed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parsed = parsed
}

func (s *MemoryStore) Parsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.parsed
}
