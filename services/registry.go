package services

import (
	"sync"
	"time"

	"pactline-backend/core/pact"
)

// VerifierRecord captures one registered verifier's capabilities and stake.
type VerifierRecord struct {
	Address      pact.Address `json:"address"`
	Capabilities []string     `json:"capabilities,omitempty"`
	Stake        int64        `json:"stake"`
	Active       bool         `json:"active"`
	RegisteredAt time.Time    `json:"registered_at"`
}

// VerifierRegistry is the eligibility lookup consumed by the router. The
// pact ledger itself never consults it: oracle eligibility on a pact is
// whoever was listed at creation.
type VerifierRegistry interface {
	IsEligible(addr pact.Address) bool
	Get(addr pact.Address) (VerifierRecord, bool)
}

// Registry is a simple in-memory verifier record store. Administrative
// functions check an explicit administrator identity rather than any
// implicit ownership.
type Registry struct {
	mu       sync.RWMutex
	admin    pact.Address
	minStake int64
	records  map[pact.Address]VerifierRecord
}

// NewRegistry returns a registry administered by admin.
func NewRegistry(admin pact.Address, minStake int64) *Registry {
	return &Registry{
		admin:    admin,
		minStake: minStake,
		records:  make(map[pact.Address]VerifierRecord),
	}
}

// Register records a verifier with its capabilities and stake. The stake
// must meet the configured minimum.
func (r *Registry) Register(caller pact.Address, capabilities []string, stake int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller.Zero() {
		return pact.Err("verifier address required")
	}
	if stake < r.minStake {
		return pact.Err("stake below registry minimum")
	}
	r.records[caller] = VerifierRecord{
		Address:      caller,
		Capabilities: capabilities,
		Stake:        stake,
		Active:       true,
		RegisteredAt: time.Now(),
	}
	return nil
}

// Deregister marks the caller's record inactive. The record itself is kept.
func (r *Registry) Deregister(caller pact.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[caller]
	if !ok {
		return pact.Err("verifier not registered")
	}
	rec.Active = false
	r.records[caller] = rec
	return nil
}

// SetMinStake updates the registration minimum. Administrator only.
func (r *Registry) SetMinStake(caller pact.Address, minStake int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return pact.Err("only the administrator may set the minimum stake")
	}
	if minStake < 0 {
		return pact.Err("minimum stake must not be negative")
	}
	r.minStake = minStake
	return nil
}

// IsEligible reports whether addr is an active registered verifier with
// sufficient stake.
func (r *Registry) IsEligible(addr pact.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[addr]
	return ok && rec.Active && rec.Stake >= r.minStake
}

// Get returns the record for addr.
func (r *Registry) Get(addr pact.Address) (VerifierRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[addr]
	return rec, ok
}

// List returns all records, active or not.
func (r *Registry) List() []VerifierRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]VerifierRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
