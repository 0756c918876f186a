package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pactline-backend/core/pact"
)

// SessionGrant is a spending policy for one automated caller's session key:
// which operations it may invoke, per-call value cap, total budget, and a
// request rate. The policy layer knows nothing about agreement semantics.
type SessionGrant struct {
	Key        string       `json:"key"`
	Owner      pact.Address `json:"owner"`
	AllowedOps []string     `json:"allowed_ops"`
	ValueCap   int64        `json:"value_cap"`
	Budget     int64        `json:"budget"`
	RatePerMin int          `json:"rate_per_min"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

type sessionState struct {
	grant      SessionGrant
	spent      int64
	reserved   int64
	tokens     int
	lastRefill time.Time
}

type reservation struct {
	key    string
	amount int64
}

// PolicyEngine gates and rate-limits operations invoked through session
// keys. Grants are issued by the configured administrator. Budget is
// consumed through reserve/commit so a failed downstream call can hand the
// headroom back.
type PolicyEngine struct {
	mu           sync.Mutex
	admin        pact.Address
	sessions     map[string]*sessionState
	reservations map[string]reservation
	now          func() time.Time
}

// NewPolicyEngine returns an engine administered by admin.
func NewPolicyEngine(admin pact.Address) *PolicyEngine {
	return &PolicyEngine{
		admin:        admin,
		sessions:     make(map[string]*sessionState),
		reservations: make(map[string]reservation),
		now:          time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (e *PolicyEngine) SetClock(now func() time.Time) { e.now = now }

// Grant issues a session key under the given policy. Administrator only.
func (e *PolicyEngine) Grant(caller pact.Address, grant SessionGrant) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return "", pact.Err("only the administrator may issue session grants")
	}
	if grant.Owner.Zero() {
		return "", pact.Err("grant owner required")
	}
	if grant.RatePerMin <= 0 {
		grant.RatePerMin = 60
	}
	grant.Key = uuid.NewString()
	e.sessions[grant.Key] = &sessionState{
		grant:      grant,
		tokens:     grant.RatePerMin,
		lastRefill: e.now(),
	}
	return grant.Key, nil
}

// Revoke invalidates a session key. Administrator only.
func (e *PolicyEngine) Revoke(caller pact.Address, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.admin {
		return pact.Err("only the administrator may revoke session grants")
	}
	delete(e.sessions, key)
	return nil
}

// Authorize checks a single operation against the session's policy:
// expiry, operation allowlist, per-call value cap, and request rate.
func (e *PolicyEngine) Authorize(key, op string, value int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return pact.Err("unknown session key")
	}
	now := e.now()
	if !s.grant.ExpiresAt.IsZero() && now.After(s.grant.ExpiresAt) {
		return pact.Err("session key expired")
	}
	if !s.allows(op) {
		return pact.Err("operation not permitted for this session")
	}
	if s.grant.ValueCap > 0 && value > s.grant.ValueCap {
		return pact.Err("value exceeds session cap")
	}
	s.refill(now)
	if s.tokens <= 0 {
		return pact.Err("session rate limit exceeded")
	}
	s.tokens--
	return nil
}

// Reserve holds budget headroom for an in-flight operation and returns a
// reservation ID.
func (e *PolicyEngine) Reserve(key string, amount int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return "", pact.Err("unknown session key")
	}
	if amount < 0 {
		return "", pact.Err("reservation amount must not be negative")
	}
	if s.grant.Budget > 0 && s.spent+s.reserved+amount > s.grant.Budget {
		return "", pact.Err("session budget exhausted")
	}
	s.reserved += amount
	id := uuid.NewString()
	e.reservations[id] = reservation{key: key, amount: amount}
	return id, nil
}

// Commit converts a reservation into spend.
func (e *PolicyEngine) Commit(reservationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.reservations[reservationID]
	if !ok {
		return pact.Err("unknown reservation")
	}
	delete(e.reservations, reservationID)
	if s, ok := e.sessions[res.key]; ok {
		s.reserved -= res.amount
		s.spent += res.amount
	}
	return nil
}

// Release returns a reservation's headroom without spending it.
func (e *PolicyEngine) Release(reservationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.reservations[reservationID]
	if !ok {
		return pact.Err("unknown reservation")
	}
	delete(e.reservations, reservationID)
	if s, ok := e.sessions[res.key]; ok {
		s.reserved -= res.amount
	}
	return nil
}

// Owner returns the address behind a session key.
func (e *PolicyEngine) Owner(key string) (pact.Address, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return "", false
	}
	return s.grant.Owner, true
}

func (s *sessionState) allows(op string) bool {
	if len(s.grant.AllowedOps) == 0 {
		return true
	}
	for _, allowed := range s.grant.AllowedOps {
		if allowed == op {
			return true
		}
	}
	return false
}

// refill tops the token bucket back up by elapsed time, capped at the
// per-minute rate.
func (s *sessionState) refill(now time.Time) {
	elapsed := now.Sub(s.lastRefill)
	add := int(elapsed.Minutes() * float64(s.grant.RatePerMin))
	if add > 0 {
		s.tokens += add
		if s.tokens > s.grant.RatePerMin {
			s.tokens = s.grant.RatePerMin
		}
		s.lastRefill = now
	}
}
