package events

import "sync"

// MemoryStore keeps records in a slice.
type MemoryStore struct {
	mu   sync.RWMutex
	recs []Record
}

// NewMemoryStore returns an empty in-memory log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(recs []Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(recs))
	for i, r := range recs {
		r.Seq = uint64(len(s.recs)) + 1
		s.recs = append(s.recs, r)
		out[i] = r
	}
	return out, nil
}

func (s *MemoryStore) Query(f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) Truncate(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < uint64(len(s.recs)) {
		s.recs = s.recs[:seq]
	}
	return nil
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *MemoryStore) Close() error { return nil }
