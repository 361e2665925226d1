package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
)

// RecordStore persists contract records keyed by contract id.
//
// Set is a compare-and-swap on Contract.Version: a record read at version N
// can only be written back while the stored record is still at N. A new
// record is written with Version 0. On success Set bumps c.Version and
// c.UpdatedAt in place.
type RecordStore interface {
	Get(ctx context.Context, id string) (*model.Contract, error)
	Set(ctx context.Context, c *model.Contract) error
	ListIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// checkVersion applies the Set rules given what is currently stored.
func checkVersion(c *model.Contract, exists bool, storedVersion int64) error {
	switch {
	case !exists && c.Version != 0:
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	case exists && storedVersion != c.Version:
		return fmt.Errorf("%w: %s at version %d, have %d", ErrVersionConflict, c.ID, storedVersion, c.Version)
	}
	return nil
}

// EvictFunc is called with each contract a bounded store dropped to make
// room for a new one.
type EvictFunc func(ctx context.Context, c *model.Contract)

// MemoryStore is an in-memory RecordStore, used for development and tests
type MemoryStore struct {
	contracts    map[string]*model.Contract
	mu           sync.RWMutex
	maxContracts int // Maximum contracts to keep, 0 = unlimited
	onEvict      EvictFunc
}

func NewMemoryStore(maxContracts int) *MemoryStore {
	if maxContracts < 0 {
		maxContracts = 0
	}
	slog.Info("memory contract store initialized", "max_contracts", maxContracts)
	return &MemoryStore{
		contracts:    make(map[string]*model.Contract),
		maxContracts: maxContracts,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

// OnEvict registers fn to be called after a contract was evicted. It runs
// outside the store lock.
func (s *MemoryStore) OnEvict(fn EvictFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

func (s *MemoryStore) Set(ctx context.Context, c *model.Contract) error {
	s.mu.Lock()

	stored, exists := s.contracts[c.ID]
	var storedVersion int64
	if exists {
		storedVersion = stored.Version
	}
	if err := checkVersion(c, exists, storedVersion); err != nil {
		s.mu.Unlock()
		return err
	}

	var evicted *model.Contract
	if !exists {
		var err error
		if evicted, err = s.makeRoom(); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	c.Version++
	c.UpdatedAt = time.Now().UTC()
	s.contracts[c.ID] = c.Clone()
	onEvict := s.onEvict
	s.mu.Unlock()

	if evicted != nil && onEvict != nil {
		onEvict(ctx, evicted)
	}
	return nil
}

// ListIDs returns ids ordered by creation time, newest first
func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contracts := make([]*model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].CreatedAt.After(contracts[j].CreatedAt)
	})
	ids := make([]string, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
	}
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.contracts, id)
	return nil
}

// makeRoom evicts the oldest contract nobody has signed yet when the store
// is at capacity. Contracts carrying any signature are never evicted; when
// only those are left the new contract is refused with ErrStoreFull.
// Must be called with lock held
func (s *MemoryStore) makeRoom() (*model.Contract, error) {
	if s.maxContracts <= 0 || len(s.contracts) < s.maxContracts {
		return nil, nil
	}

	var oldest *model.Contract
	for _, c := range s.contracts {
		if c.Parties[0].Signature != nil || c.Parties[1].Signature != nil {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, fmt.Errorf("%w: all %d contracts carry signatures", ErrStoreFull, len(s.contracts))
	}

	slog.Info("auto-cleaning old contract",
		"contract_id", oldest.ID,
		"created_at", oldest.CreatedAt,
	)
	delete(s.contracts, oldest.ID)
	return oldest, nil
}

// Count returns the number of contracts in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}
