package hold

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps holds in process. It serves single-instance deployments
// and tests; expired holds are dropped lazily and by SweepExpired.
type MemoryStore struct {
	mu        sync.Mutex
	byService map[string]map[string]Hold
	index     map[string]string // hold id -> service id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byService: make(map[string]map[string]Hold),
		index:     make(map[string]string),
	}
}

func (s *MemoryStore) Place(_ context.Context, h *Hold, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	holds := s.byService[h.ServiceID]
	for _, other := range holds {
		if other.SessionID != h.SessionID && other.Active(now) && other.Overlaps(h.Start, h.End) {
			return ErrSlotHeld
		}
	}

	for id, other := range holds {
		if other.SessionID == h.SessionID || !other.Active(now) {
			s.removeLocked(h.ServiceID, id)
		}
	}

	if s.byService[h.ServiceID] == nil {
		s.byService[h.ServiceID] = make(map[string]Hold)
	}
	s.byService[h.ServiceID][h.ID] = *h
	s.index[h.ID] = h.ServiceID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string, now time.Time) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceID, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	h := s.byService[serviceID][id]
	if !h.Active(now) {
		return nil, ErrNotFound
	}
	return &h, nil
}

func (s *MemoryStore) Release(_ context.Context, id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serviceID, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}
	if s.byService[serviceID][id].SessionID != sessionID {
		return ErrNotOwner
	}
	s.removeLocked(serviceID, id)
	return nil
}

func (s *MemoryStore) ReleaseSession(_ context.Context, serviceID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.byService[serviceID] {
		if h.SessionID == sessionID {
			s.removeLocked(serviceID, id)
		}
	}
	return nil
}

func (s *MemoryStore) ActiveForService(_ context.Context, serviceID string, from, to, now time.Time) ([]Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Hold
	for _, h := range s.byService[serviceID] {
		if h.Active(now) && h.Overlaps(from, to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for serviceID, holds := range s.byService {
		for id, h := range holds {
			if !h.Active(now) {
				s.removeLocked(serviceID, id)
				removed++
			}
		}
	}
	return removed, nil
}

func (s *MemoryStore) removeLocked(serviceID, id string) {
	delete(s.byService[serviceID], id)
	delete(s.index, id)
	if len(s.byService[serviceID]) == 0 {
		delete(s.byService, serviceID)
	}
}
