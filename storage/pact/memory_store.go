package pact

import (
	"context"
	"sync"

	"pactline-backend/core/pact"
)

// MemoryStore holds ledger records in memory. The single mutex keeps the
// maps and the two indexes consistent with each other; the ledger engine
// additionally serializes whole operations above this layer.
type MemoryStore struct {
	mu            sync.RWMutex
	nextID        uint64
	pacts         map[uint64]pact.Pact
	verifications map[uint64]map[pact.Address]pact.Verification
	amendments    map[uint64]pact.Amendment
	reputations   map[pact.Address]pact.Reputation

	openList []uint64
	openPos  map[uint64]int

	participants map[pact.Address][]uint64
}

// NewMemoryStore returns an empty store. IDs start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:        1,
		pacts:         make(map[uint64]pact.Pact),
		verifications: make(map[uint64]map[pact.Address]pact.Verification),
		amendments:    make(map[uint64]pact.Amendment),
		reputations:   make(map[pact.Address]pact.Reputation),
		openPos:       make(map[uint64]int),
		participants:  make(map[pact.Address][]uint64),
	}
}

// CreatePact assigns the next dense ID and persists the record.
func (s *MemoryStore) CreatePact(ctx context.Context, p pact.Pact) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	s.pacts[p.ID] = p
	return p.ID, nil
}

// GetPact returns the record for id.
func (s *MemoryStore) GetPact(ctx context.Context, id uint64) (pact.Pact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pacts[id]
	if !ok {
		return pact.Pact{}, pact.ErrPactNotFound
	}
	return p, nil
}

// PutPact overwrites the record for p.ID.
func (s *MemoryStore) PutPact(ctx context.Context, p pact.Pact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pacts[p.ID]; !ok {
		return pact.ErrPactNotFound
	}
	s.pacts[p.ID] = p
	return nil
}

// PutVerification stores one oracle's record for a pact.
func (s *MemoryStore) PutVerification(ctx context.Context, v pact.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOracle, ok := s.verifications[v.PactID]
	if !ok {
		byOracle = make(map[pact.Address]pact.Verification)
		s.verifications[v.PactID] = byOracle
	}
	byOracle[v.Oracle] = v
	return nil
}

// GetVerification returns the record for (pactID, oracle).
func (s *MemoryStore) GetVerification(ctx context.Context, pactID uint64, oracle pact.Address) (pact.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verifications[pactID][oracle]
	if !ok {
		return pact.Verification{}, pact.ErrVerificationNotFound
	}
	return v, nil
}

// PutAmendment replaces the pact's amendment record wholesale.
func (s *MemoryStore) PutAmendment(ctx context.Context, a pact.Amendment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.amendments[a.PactID] = a
	return nil
}

// GetAmendment returns the amendment record for a pact.
func (s *MemoryStore) GetAmendment(ctx context.Context, pactID uint64) (pact.Amendment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.amendments[pactID]
	if !ok {
		return pact.Amendment{}, pact.ErrAmendmentNotFound
	}
	return a, nil
}

// GetReputation returns the counters for addr, zero-valued when absent.
func (s *MemoryStore) GetReputation(ctx context.Context, addr pact.Address) (pact.Reputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reputations[addr], nil
}

// PutReputation overwrites the counters for r.Address.
func (s *MemoryStore) PutReputation(ctx context.Context, r pact.Reputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputations[r.Address] = r
	return nil
}

// AppendOpen adds id to the open-agreement index.
func (s *MemoryStore) AppendOpen(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openPos[id]; ok {
		return nil
	}
	s.openPos[id] = len(s.openList)
	s.openList = append(s.openList, id)
	return nil
}

// RemoveOpen removes id in O(1) by swapping the last entry into its slot.
// Iteration order is not preserved.
func (s *MemoryStore) RemoveOpen(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.openPos[id]
	if !ok {
		return nil
	}
	last := len(s.openList) - 1
	moved := s.openList[last]
	s.openList[pos] = moved
	s.openPos[moved] = pos
	s.openList = s.openList[:last]
	delete(s.openPos, id)
	return nil
}

// OpenPacts returns a page of open-agreement IDs.
func (s *MemoryStore) OpenPacts(ctx context.Context, offset, limit int) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.openList, offset, limit), nil
}

// OpenPactCount returns the size of the open-agreement index.
func (s *MemoryStore) OpenPactCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.openList), nil
}

// AppendParticipant records that addr created or joined the pact.
func (s *MemoryStore) AppendParticipant(ctx context.Context, addr pact.Address, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[addr] = append(s.participants[addr], id)
	return nil
}

// ParticipantPacts returns a page of the address's agreement IDs in join
// order.
func (s *MemoryStore) ParticipantPacts(ctx context.Context, addr pact.Address, offset, limit int) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.participants[addr], offset, limit), nil
}

// ParticipantPactCount returns how many agreements the address is listed on.
func (s *MemoryStore) ParticipantPactCount(ctx context.Context, addr pact.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants[addr]), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

func paginate(ids []uint64, offset, limit int) []uint64 {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return nil
	}
	page := ids[offset:]
	if limit > 0 && limit < len(page) {
		page = page[:limit]
	}
	out := make([]uint64, len(page))
	copy(out, page)
	return out
}
