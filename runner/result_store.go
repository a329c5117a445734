package runner

import (
	"sync"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// ResultStore maps test descriptions to their final result. Every
// description can be written once; it is safe for concurrent use so that
// several schedulers can share one store.
type ResultStore struct {
	mu      sync.RWMutex
	byID    map[string]*types.TestResult
	ordered []*types.TestResult
	stats   types.ResultStats
}

// NewResultStore creates an empty store
func NewResultStore() *ResultStore {
	return &ResultStore{
		byID: make(map[string]*types.TestResult),
	}
}

// Record stores result. A second write for the same description is rejected
// with a DuplicateResultError and the first result is kept.
func (s *ResultStore) Record(result *types.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := result.Description.ID()
	if _, exists := s.byID[id]; exists {
		return &DuplicateResultError{Description: result.Description}
	}
	s.byID[id] = result
	s.ordered = append(s.ordered, result)
	s.stats.Add(result)
	return nil
}

// Get returns the result recorded for desc, if any.
func (s *ResultStore) Get(desc types.Description) (*types.TestResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.byID[desc.ID()]
	return result, ok
}

// Has reports whether desc already has a result.
func (s *ResultStore) Has(desc types.Description) bool {
	_, ok := s.Get(desc)
	return ok
}

// Results returns all results in the order they were recorded.
func (s *ResultStore) Results() []*types.TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]*types.TestResult, len(s.ordered))
	copy(cp, s.ordered)
	return cp
}

// Len returns the number of recorded results.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Stats returns aggregated counts over all results.
func (s *ResultStore) Stats() types.ResultStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
