package pact

import (
	"context"

	"github.com/pkg/errors"
)

// ProposeAmendment records a proposed change to payment, deadline, or spec
// hash. Zero-valued fields keep the current term, so a single field can be
// renegotiated without restating the rest. A new proposal replaces any prior
// pending one wholesale. Either assigned party may propose; terms are frozen
// once work reaches verification.
func (l *Ledger) ProposeAmendment(ctx context.Context, caller Address, id uint64, proposed Amendment) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusNegotiating, StatusFunded, StatusInProgress); err != nil {
		return err
	}
	if !p.IsParty(caller) {
		return roleErrf("%s is not a party to pact %d", caller, id)
	}
	if proposed.Payment < 0 {
		return paramErrf("proposed payment must not be negative")
	}

	a := Amendment{
		PactID:   id,
		Payment:  proposed.Payment,
		Deadline: proposed.Deadline,
		SpecHash: proposed.SpecHash,
		Proposer: caller,
		Pending:  true,
	}
	if err := l.store.PutAmendment(ctx, a); err != nil {
		return err
	}
	l.emit(Event{Type: EventAmendmentProposed, PactID: id, Actor: caller, Amount: proposed.Payment})
	return nil
}

// AcceptAmendment applies the pending proposal to the live pact. Only the
// counterparty may accept: the proposer cannot accept their own proposal,
// and an unassigned slot means there is no counterparty yet, so acceptance
// fails as "not a party". A payment increase requires the acceptor to top up
// the escrow with delta plus delta/10 added to their own stake; a decrease
// refunds the difference to the buyer.
func (l *Ledger) AcceptAmendment(ctx context.Context, caller Address, value int64, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusNegotiating, StatusFunded, StatusInProgress); err != nil {
		return err
	}
	a, err := l.store.GetAmendment(ctx, id)
	if errors.Is(err, ErrAmendmentNotFound) {
		return stateErrf("no pending amendment for pact %d", id)
	}
	if err != nil {
		return err
	}
	if !a.Pending {
		return stateErrf("no pending amendment for pact %d", id)
	}
	if !p.IsParty(caller) {
		return roleErrf("%s is not a party to pact %d", caller, id)
	}
	if caller == a.Proposer {
		return roleErrf("proposer cannot accept their own amendment")
	}

	newPayment := p.Payment
	if a.Payment != 0 {
		newPayment = a.Payment
	}

	switch {
	case newPayment > p.Payment:
		delta := newPayment - p.Payment
		topUp := delta + delta/stakeDivisor
		if err := l.collect(ctx, p.Asset, caller, value, topUp); err != nil {
			return err
		}
		if caller == p.Buyer {
			p.BuyerStake += delta / stakeDivisor
		} else {
			p.SellerStake += delta / stakeDivisor
		}
	case newPayment < p.Payment:
		if err := l.collect(ctx, p.Asset, caller, value, 0); err != nil {
			return err
		}
		if err := l.disburse(ctx, p.Asset, p.Buyer, p.Payment-newPayment); err != nil {
			return err
		}
	default:
		if err := l.collect(ctx, p.Asset, caller, value, 0); err != nil {
			return err
		}
	}

	p.Payment = newPayment
	if !a.Deadline.IsZero() {
		p.Deadline = a.Deadline
	}
	if a.SpecHash != "" {
		p.SpecHash = a.SpecHash
	}

	a.Pending = false
	if err := l.store.PutAmendment(ctx, a); err != nil {
		return err
	}
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	l.log.Infow("amendment accepted", "id", id, "payment", p.Payment)
	l.emit(Event{Type: EventAmendmentAccepted, PactID: id, Actor: caller, Amount: p.Payment})
	return nil
}
