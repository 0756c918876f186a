package pact

import (
	"context"

	"github.com/pkg/errors"
)

// GetPact returns the full agreement record.
func (l *Ledger) GetPact(ctx context.Context, id uint64) (Pact, error) {
	return l.store.GetPact(ctx, id)
}

// Oracles returns the pact's oracle panel with weights.
func (l *Ledger) Oracles(ctx context.Context, id uint64) ([]OracleWeight, error) {
	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Oracles, nil
}

// GetVerification returns one oracle's verification record for a pact.
func (l *Ledger) GetVerification(ctx context.Context, id uint64, oracle Address) (Verification, error) {
	return l.store.GetVerification(ctx, id, oracle)
}

// PendingAmendment returns the pending proposal for a pact, if any.
func (l *Ledger) PendingAmendment(ctx context.Context, id uint64) (Amendment, bool, error) {
	a, err := l.store.GetAmendment(ctx, id)
	if errors.Is(err, ErrAmendmentNotFound) {
		return Amendment{}, false, nil
	}
	if err != nil {
		return Amendment{}, false, err
	}
	return a, a.Pending, nil
}

// GetReputation returns the derived counters for an address. Addresses with
// no history return a zero record.
func (l *Ledger) GetReputation(ctx context.Context, addr Address) (Reputation, error) {
	r, err := l.store.GetReputation(ctx, addr)
	if err != nil {
		return Reputation{}, err
	}
	r.Address = addr
	return r, nil
}

// OpenPacts returns a page of agreements still awaiting a counterparty.
// Order is not stable: removal swaps the last entry into the freed slot.
func (l *Ledger) OpenPacts(ctx context.Context, offset, limit int) ([]Pact, error) {
	ids, err := l.store.OpenPacts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return l.hydrate(ctx, ids)
}

// OpenPactCount returns the number of open agreements.
func (l *Ledger) OpenPactCount(ctx context.Context) (int, error) {
	return l.store.OpenPactCount(ctx)
}

// PactsOf returns a page of every agreement the address created or joined,
// in join order.
func (l *Ledger) PactsOf(ctx context.Context, addr Address, offset, limit int) ([]Pact, error) {
	ids, err := l.store.ParticipantPacts(ctx, addr, offset, limit)
	if err != nil {
		return nil, err
	}
	return l.hydrate(ctx, ids)
}

// PactCountOf returns how many agreements the address participates in.
func (l *Ledger) PactCountOf(ctx context.Context, addr Address) (int, error) {
	return l.store.ParticipantPactCount(ctx, addr)
}

func (l *Ledger) hydrate(ctx context.Context, ids []uint64) ([]Pact, error) {
	out := make([]Pact, 0, len(ids))
	for _, id := range ids {
		p, err := l.store.GetPact(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
