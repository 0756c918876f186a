package pact

import "context"

// RaiseDispute escalates the pact to arbitration. Buyer or seller only. Also
// accepted on an already-DISPUTED pact that has no arbitrator yet: failed
// verification auto-disputes without assigning one, and rejection leaves the
// slot empty too, so this is the path that fills it.
func (l *Ledger) RaiseDispute(ctx context.Context, caller Address, id uint64, arbitrator Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	switch p.Status {
	case StatusInProgress, StatusPendingVerify, StatusPendingApproval:
	case StatusDisputed:
		if !p.Arbitrator.Zero() {
			return stateErrf("pact %d already has arbitrator %s", id, p.Arbitrator)
		}
	default:
		return stateErrf("pact %d is %s", id, p.Status)
	}
	if !p.IsParty(caller) {
		return roleErrf("%s is not a party to pact %d", caller, id)
	}
	if arbitrator.Zero() {
		return paramErrf("arbitrator address required")
	}

	p.Status = StatusDisputed
	p.Arbitrator = arbitrator
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	l.log.Infow("dispute raised", "id", id, "by", caller, "arbitrator", arbitrator)
	l.emit(Event{Type: EventDisputeRaised, PactID: id, Actor: caller, Status: StatusDisputed})
	return nil
}

// ResolveDispute liquidates the full escrow in one binary award. Arbitrator
// only. The winner receives payment plus both stakes; an unpaid oracle fee
// is folded into the award rather than left stranded. The loser is credited
// a dispute loss — the seller only if one was ever assigned.
func (l *Ledger) ResolveDispute(ctx context.Context, caller Address, id uint64, sellerWins bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusDisputed); err != nil {
		return err
	}
	if p.Arbitrator.Zero() {
		return stateErrf("pact %d has no arbitrator assigned", id)
	}
	if caller != p.Arbitrator {
		return roleErrf("only the arbitrator may resolve the dispute")
	}

	award := p.Payment + p.BuyerStake + p.SellerStake
	if !p.OracleFeePaid {
		award += p.OracleFee
		p.OracleFeePaid = true
	}

	if sellerWins {
		p.Status = StatusCompleted
	} else {
		p.Status = StatusRefunded
	}
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}

	winner := p.Buyer
	if sellerWins {
		winner = p.Seller
	}
	if err := l.disburse(ctx, p.Asset, winner, award); err != nil {
		return err
	}

	if sellerWins {
		if err := l.credit(ctx, p.Seller, func(r *Reputation) {
			r.CompletionsAsSeller++
			r.SettledVolume += p.Payment
		}); err != nil {
			return err
		}
		if err := l.credit(ctx, p.Buyer, func(r *Reputation) { r.DisputesLost++ }); err != nil {
			return err
		}
	} else if !p.Seller.Zero() {
		if err := l.credit(ctx, p.Seller, func(r *Reputation) { r.DisputesLost++ }); err != nil {
			return err
		}
	}

	l.log.Infow("dispute resolved", "id", id, "seller_wins", sellerWins, "award", award)
	l.emit(Event{Type: EventDisputeResolved, PactID: id, Actor: caller, Status: p.Status, Amount: award})
	return nil
}

// ClaimTimeout resolves an expired pact. Callable by anyone once the
// deadline has passed. In NEGOTIATING the sole depositor is made whole with
// no reputation penalty. Once accepted but undelivered, the buyer recovers
// everything including the forfeited seller stake and the seller is credited
// a dispute loss. From PENDING_VERIFY onward the work has been delivered, so
// resolution routes through verification or dispute, never timeout.
func (l *Ledger) ClaimTimeout(ctx context.Context, caller Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if !l.now().After(p.Deadline) {
		return temporalErrf("pact %d deadline has not passed", id)
	}

	switch p.Status {
	case StatusNegotiating:
		depositor := p.Buyer
		refund := p.Payment + p.OracleFee + p.BuyerStake
		if p.Initiator == RoleSeller {
			depositor = p.Seller
			refund = p.SellerStake
		} else {
			p.OracleFeePaid = true
		}
		p.Status = StatusRefunded
		if err := l.store.PutPact(ctx, p); err != nil {
			return err
		}
		if err := l.store.RemoveOpen(ctx, id); err != nil {
			return err
		}
		if err := l.disburse(ctx, p.Asset, depositor, refund); err != nil {
			return err
		}
		l.emit(Event{Type: EventTimeoutClaimed, PactID: id, Actor: caller, Status: StatusRefunded, Amount: refund})
		return nil

	case StatusFunded, StatusInProgress:
		refund := p.Payment + p.OracleFee + p.BuyerStake + p.SellerStake
		p.OracleFeePaid = true
		p.Status = StatusRefunded
		if err := l.store.PutPact(ctx, p); err != nil {
			return err
		}
		if err := l.disburse(ctx, p.Asset, p.Buyer, refund); err != nil {
			return err
		}
		if err := l.credit(ctx, p.Seller, func(r *Reputation) { r.DisputesLost++ }); err != nil {
			return err
		}
		l.log.Infow("timeout claimed", "id", id, "refund", refund)
		l.emit(Event{Type: EventTimeoutClaimed, PactID: id, Actor: caller, Status: StatusRefunded, Amount: refund})
		return nil

	default:
		return stateErrf("pact %d is %s and cannot time out", id, p.Status)
	}
}
