// Package pairstore implements the in-memory set of grid pairs keyed
// by signed index, with a secondary index by group for completion
// accounting and expansion scans.
package pairstore

import (
	"sort"
	"sync"

	"gridengine/internal/models"
)

type Store struct {
	mu      sync.RWMutex
	pairs   map[int32]*models.GridPair
	byGroup map[uint32]map[int32]struct{}
}

func New() *Store {
	return &Store{
		pairs:   make(map[int32]*models.GridPair),
		byGroup: make(map[uint32]map[int32]struct{}),
	}
}

// Create inserts a new pair. It is the caller's responsibility to ensure
// no pair already exists at this index, enforced at the engine level since Store is
// scoped to a single symbol).
func (s *Store) Create(p *models.GridPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[p.Index] = p
	if s.byGroup[p.GroupID] == nil {
		s.byGroup[p.GroupID] = make(map[int32]struct{})
	}
	s.byGroup[p.GroupID][p.Index] = struct{}{}
}

// Get returns the pair at index, or nil.
func (s *Store) Get(index int32) *models.GridPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pairs[index]
}

// Exists reports whether a pair exists at index.
func (s *Store) Exists(index int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pairs[index]
	return ok
}

// Indices returns all indices belonging to a group, ascending.
func (s *Store) Indices(groupID uint32) []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byGroup[groupID]
	out := make([]int32, 0, len(set))
	for idx := range set {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Pairs returns all pairs of a group, ascending by index.
func (s *Store) Pairs(groupID uint32) []*models.GridPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.byGroup[groupID]
	out := make([]*models.GridPair, 0, len(set))
	for idx := range set {
		out = append(out, s.pairs[idx])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// All returns every pair in the store, ascending by index.
func (s *Store) All() []*models.GridPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.GridPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// HighestSellOnly returns the highest-indexed pair in the group that has
// only a sell leg filled (candidate for bullish step expansion), or nil.
func (s *Store) HighestSellOnly(groupID uint32) *models.GridPair {
	var best *models.GridPair
	for _, p := range s.Pairs(groupID) {
		if p.SellFilled && !p.BuyFilled {
			if best == nil || p.Index > best.Index {
				best = p
			}
		}
	}
	return best
}

// LowestBuyOnly returns the lowest-indexed pair in the group that has
// only a buy leg filled (candidate for bearish step expansion), or nil.
func (s *Store) LowestBuyOnly(groupID uint32) *models.GridPair {
	var best *models.GridPair
	for _, p := range s.Pairs(groupID) {
		if p.BuyFilled && !p.SellFilled {
			if best == nil || p.Index < best.Index {
				best = p
			}
		}
	}
	return best
}

// Restore replaces the store contents wholesale from persisted rows.
func (s *Store) Restore(pairs []*models.GridPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = make(map[int32]*models.GridPair, len(pairs))
	s.byGroup = make(map[uint32]map[int32]struct{})
	for _, p := range pairs {
		s.pairs[p.Index] = p
		if s.byGroup[p.GroupID] == nil {
			s.byGroup[p.GroupID] = make(map[int32]struct{})
		}
		s.byGroup[p.GroupID][p.Index] = struct{}{}
	}
}
