package pact

import "context"

// ApproveWork releases the escrow on the happy path: payment+sellerStake to
// the seller, buyerStake back to the buyer. Buyer-only, review window only.
func (l *Ledger) ApproveWork(ctx context.Context, caller Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusPendingApproval); err != nil {
		return err
	}
	if caller != p.Buyer {
		return roleErrf("only the buyer may approve work")
	}
	return l.settleCompletion(ctx, &p, caller, EventWorkApproved)
}

// RejectWork escalates the pact to DISPUTED without moving funds. The buyer
// (or seller) assigns an arbitrator afterwards via RaiseDispute.
func (l *Ledger) RejectWork(ctx context.Context, caller Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusPendingApproval); err != nil {
		return err
	}
	if caller != p.Buyer {
		return roleErrf("only the buyer may reject work")
	}

	p.Status = StatusDisputed
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	l.emit(Event{Type: EventWorkRejected, PactID: id, Actor: caller, Status: StatusDisputed})
	return nil
}

// AutoApprove performs the ApproveWork settlement once the buyer review
// window has lapsed without a rejection. Callable by anyone.
func (l *Ledger) AutoApprove(ctx context.Context, caller Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusPendingApproval); err != nil {
		return err
	}
	if l.now().Before(p.VerifiedAt.Add(p.ReviewPeriod)) {
		return temporalErrf("review period for pact %d has not expired", id)
	}
	return l.settleCompletion(ctx, &p, caller, EventAutoApproved)
}

// settleCompletion disburses the happy-path split, moves the pact to
// COMPLETED, and credits both parties' completion reputation and settled
// volume. Status is persisted before funds move.
func (l *Ledger) settleCompletion(ctx context.Context, p *Pact, actor Address, eventType string) error {
	p.Status = StatusCompleted
	if err := l.store.PutPact(ctx, *p); err != nil {
		return err
	}

	if err := l.disburse(ctx, p.Asset, p.Seller, p.Payment+p.SellerStake); err != nil {
		return err
	}
	if err := l.disburse(ctx, p.Asset, p.Buyer, p.BuyerStake); err != nil {
		return err
	}

	if err := l.credit(ctx, p.Buyer, func(r *Reputation) {
		r.CompletionsAsBuyer++
		r.SettledVolume += p.Payment
	}); err != nil {
		return err
	}
	if err := l.credit(ctx, p.Seller, func(r *Reputation) {
		r.CompletionsAsSeller++
		r.SettledVolume += p.Payment
	}); err != nil {
		return err
	}

	l.log.Infow("pact completed", "id", p.ID, "payment", p.Payment, "event", eventType)
	l.emit(Event{Type: eventType, PactID: p.ID, Actor: actor, Status: StatusCompleted, Amount: p.Payment + p.SellerStake})
	return nil
}

// credit applies an additive reputation mutation for addr.
func (l *Ledger) credit(ctx context.Context, addr Address, mutate func(*Reputation)) error {
	r, err := l.store.GetReputation(ctx, addr)
	if err != nil {
		return err
	}
	r.Address = addr
	mutate(&r)
	return l.store.PutReputation(ctx, r)
}
