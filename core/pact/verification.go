package pact

import (
	"context"

	"github.com/pkg/errors"
)

// SubmitVerification records one oracle's score for the delivered work.
// Oracle-only; a (pact, oracle) pair may submit exactly once.
func (l *Ledger) SubmitVerification(ctx context.Context, caller Address, id uint64, score int, proof string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusPendingVerify); err != nil {
		return err
	}
	if _, ok := p.OracleFor(caller); !ok {
		return roleErrf("%s is not an oracle on pact %d", caller, id)
	}
	if score < 0 || score > maxScore {
		return paramErrf("score %d out of range 0..%d", score, maxScore)
	}
	if _, err := l.store.GetVerification(ctx, id, caller); err == nil {
		return stateErrf("oracle %s already submitted for pact %d", caller, id)
	} else if !errors.Is(err, ErrVerificationNotFound) {
		return err
	}

	v := Verification{
		PactID:    id,
		Oracle:    caller,
		Score:     score,
		Submitted: true,
		Proof:     proof,
		CreatedAt: l.now(),
	}
	if err := l.store.PutVerification(ctx, v); err != nil {
		return err
	}
	l.emit(Event{Type: EventVerificationSubmitted, PactID: id, Actor: caller, Amount: int64(score)})
	return nil
}

// FinalizeVerification aggregates the panel's scores once every oracle has
// submitted. Callable by anyone. A passing weighted score opens the buyer
// review window; a failing one auto-raises a dispute with no arbitrator
// assigned. The oracle fee pool is distributed on either outcome, exactly
// once.
func (l *Ledger) FinalizeVerification(ctx context.Context, caller Address, id uint64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := requireStatus(&p, StatusPendingVerify); err != nil {
		return 0, err
	}

	score, err := l.weightedScore(ctx, &p)
	if err != nil {
		return 0, err
	}

	if score >= p.Threshold {
		p.Status = StatusPendingApproval
		p.VerifiedAt = l.now()
	} else {
		p.Status = StatusDisputed
	}

	feeWasPaid := p.OracleFeePaid
	p.OracleFeePaid = true
	if err := l.store.PutPact(ctx, p); err != nil {
		return 0, err
	}
	if !feeWasPaid {
		if err := l.distributeOracleFee(ctx, &p); err != nil {
			return 0, err
		}
	}

	l.log.Infow("verification finalized", "id", id, "score", score, "threshold", p.Threshold, "status", p.Status)
	l.emit(Event{Type: EventVerificationFinalized, PactID: id, Actor: caller, Status: p.Status, Amount: int64(score)})
	return score, nil
}

// weightedScore computes Σ(score×weight)/100 in integer arithmetic. A single
// missing submission blocks finalization; it is never treated as zero.
func (l *Ledger) weightedScore(ctx context.Context, p *Pact) (int, error) {
	total := 0
	for _, ow := range p.Oracles {
		v, err := l.store.GetVerification(ctx, p.ID, ow.Address)
		if errors.Is(err, ErrVerificationNotFound) {
			return 0, stateErrf("oracle %s has not submitted for pact %d", ow.Address, p.ID)
		}
		if err != nil {
			return 0, err
		}
		total += v.Score * ow.Weight
	}
	return total / weightTotal, nil
}

// distributeOracleFee splits the fee pool by oracle weight. All but the last
// oracle receive floor(fee*weight/100); the last receives the exact
// remainder, so the pool disburses with zero dust.
func (l *Ledger) distributeOracleFee(ctx context.Context, p *Pact) error {
	if p.OracleFee == 0 {
		return nil
	}
	remaining := p.OracleFee
	for i, ow := range p.Oracles {
		share := p.OracleFee * int64(ow.Weight) / weightTotal
		if i == len(p.Oracles)-1 {
			share = remaining
		}
		if err := l.disburse(ctx, p.Asset, ow.Address, share); err != nil {
			return err
		}
		remaining -= share
	}
	return nil
}
