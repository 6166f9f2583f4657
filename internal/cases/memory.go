package cases

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/richxcame/returnguard/internal/scoring"
)

// MemoryStore is an in-memory Store implementation used by tests and local
// development. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[uuid.UUID]*ReturnCase
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[uuid.UUID]*ReturnCase)}
}

// Insert creates a new return case
func (s *MemoryStore) Insert(ctx context.Context, returnCase *ReturnCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *returnCase
	s.cases[returnCase.ID] = &stored

	return nil
}

// InsertMany creates return cases in bulk
func (s *MemoryStore) InsertMany(ctx context.Context, returnCases []*ReturnCase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, returnCase := range returnCases {
		stored := *returnCase
		s.cases[returnCase.ID] = &stored
	}

	return nil
}

// GetByID retrieves a return case by ID
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*ReturnCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}

	returnCase := *stored
	return &returnCase, nil
}

// Find retrieves return cases matching the filter, newest first
func (s *MemoryStore) Find(ctx context.Context, filter Filter) ([]*ReturnCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*ReturnCase
	for _, stored := range s.cases {
		if !matches(stored, filter) {
			continue
		}
		returnCase := *stored
		matched = append(matched, &returnCase)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// Update applies a partial update and returns the updated case
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, update CaseUpdate) (*ReturnCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cases[id]
	if !ok {
		return nil, ErrCaseNotFound
	}

	if update.ReturnReason != nil {
		stored.ReturnReason = *update.ReturnReason
	}
	if update.ProductCategory != nil {
		stored.ProductCategory = *update.ProductCategory
	}
	if update.RefundMethod != nil {
		stored.RefundMethod = *update.RefundMethod
	}
	if update.RiskScore != nil {
		stored.RiskScore = *update.RiskScore
	}
	if update.SuspicionScore != nil {
		stored.SuspicionScore = *update.SuspicionScore
	}
	if update.ActionTaken != nil {
		stored.ActionTaken = *update.ActionTaken
	}

	returnCase := *stored
	return &returnCase, nil
}

// Delete removes a return case
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cases[id]; !ok {
		return ErrCaseNotFound
	}
	delete(s.cases, id)

	return nil
}

// Statistics computes case statistics with the given policy
func (s *MemoryStore) Statistics(ctx context.Context, policy scoring.Policy) (*scoring.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]scoring.ScoredCase, 0, len(s.cases))
	for _, stored := range s.cases {
		scored = append(scored, scoring.ScoredCase{
			RiskScore:      stored.RiskScore,
			SuspicionScore: stored.SuspicionScore,
		})
	}

	stats := policy.Statistics(scored)
	return &stats, nil
}

func matches(returnCase *ReturnCase, filter Filter) bool {
	if filter.CustomerID != "" && returnCase.CustomerID != filter.CustomerID {
		return false
	}
	if filter.ProductCategory != "" && returnCase.ProductCategory != filter.ProductCategory {
		return false
	}
	if filter.ActionTaken != "" && returnCase.ActionTaken != filter.ActionTaken {
		return false
	}
	if filter.MinRiskScore != nil && returnCase.RiskScore < *filter.MinRiskScore {
		return false
	}
	if filter.MaxRiskScore != nil && returnCase.RiskScore > *filter.MaxRiskScore {
		return false
	}
	return true
}
