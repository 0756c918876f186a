package pact

import "context"

var (
	ErrPactNotFound         = Err("pact not found")
	ErrVerificationNotFound = Err("verification not found")
	ErrAmendmentNotFound    = Err("amendment not found")
)

// Err is a simple string error helper.
type Err string

func (e Err) Error() string { return string(e) }

// Store abstracts ledger persistence. Implementations do not need to be
// transactional across calls: the Ledger serializes every mutating operation
// under a single lock, matching the one-call-at-a-time execution model.
type Store interface {
	// CreatePact assigns the next dense ID, persists the record, and
	// returns the ID.
	CreatePact(ctx context.Context, p Pact) (uint64, error)
	GetPact(ctx context.Context, id uint64) (Pact, error)
	PutPact(ctx context.Context, p Pact) error

	PutVerification(ctx context.Context, v Verification) error
	GetVerification(ctx context.Context, pactID uint64, oracle Address) (Verification, error)

	// PutAmendment replaces any existing record for the pact wholesale.
	PutAmendment(ctx context.Context, a Amendment) error
	GetAmendment(ctx context.Context, pactID uint64) (Amendment, error)

	// GetReputation returns a zero-valued record when the address has no
	// history yet.
	GetReputation(ctx context.Context, addr Address) (Reputation, error)
	PutReputation(ctx context.Context, r Reputation) error

	// Open-agreement index. Removal is swap-with-last: iteration order is
	// not stable and callers must not assume it.
	AppendOpen(ctx context.Context, id uint64) error
	RemoveOpen(ctx context.Context, id uint64) error
	OpenPacts(ctx context.Context, offset, limit int) ([]uint64, error)
	OpenPactCount(ctx context.Context) (int, error)

	// Participant index: append-only list per address of every pact the
	// address created or joined.
	AppendParticipant(ctx context.Context, addr Address, id uint64) error
	ParticipantPacts(ctx context.Context, addr Address, offset, limit int) ([]uint64, error)
	ParticipantPactCount(ctx context.Context, addr Address) (int, error)

	Close()
}
