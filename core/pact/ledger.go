package pact

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ledger is the authoritative pact engine: every public operation checks the
// stored status first, then moves funds, then updates the discovery and
// reputation indexes. Mutating operations are serialized under one mutex so
// each call observes the previous one's full effect, matching the globally
// ordered execution model the guards assume.
type Ledger struct {
	mu    sync.Mutex
	store Store
	vault TokenVault
	hub   *EventHub
	log   *zap.SugaredLogger
	now   func() time.Time

	payouts       map[Address]int64
	nativeCustody int64
}

// NewLedger builds a ledger over the given store and token vault.
func NewLedger(store Store, vault TokenVault, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:   store,
		vault:   vault,
		hub:     NewEventHub(),
		log:     logger.Sugar(),
		now:     time.Now,
		payouts: make(map[Address]int64),
	}
}

// SetClock overrides the time source. Used by tests.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Events returns the ledger's event hub.
func (l *Ledger) Events() *EventHub { return l.hub }

func (l *Ledger) emit(ev Event) {
	ev.CreatedAt = l.now()
	l.hub.Publish(ev)
}

// requireStatus rejects unless the pact is in one of the given states.
func requireStatus(p *Pact, allowed ...Status) error {
	for _, s := range allowed {
		if p.Status == s {
			return nil
		}
	}
	return stateErrf("pact %d is %s", p.ID, p.Status)
}

func validateCreate(params CreateParams, now time.Time) error {
	if params.Initiator != RoleBuyer && params.Initiator != RoleSeller {
		return paramErrf("initiator must be buyer or seller")
	}
	if params.Payment <= 0 {
		return paramErrf("payment must be positive")
	}
	if params.OracleFee < 0 {
		return paramErrf("oracle fee must not be negative")
	}
	if params.ReviewPeriod < 0 {
		return paramErrf("review period must not be negative")
	}
	if !params.Deadline.After(now) {
		return temporalErrf("deadline must be in the future")
	}
	if len(params.Oracles) == 0 {
		return paramErrf("at least one oracle is required")
	}
	sum := 0
	for _, ow := range params.Oracles {
		if ow.Address.Zero() {
			return paramErrf("oracle address must not be empty")
		}
		if ow.Weight <= 0 {
			return paramErrf("oracle weight must be positive")
		}
		sum += ow.Weight
	}
	if sum != weightTotal {
		return paramErrf("oracle weights sum to %d, want %d", sum, weightTotal)
	}
	if params.Threshold < 0 || params.Threshold > maxScore {
		return paramErrf("threshold %d out of range 0..%d", params.Threshold, maxScore)
	}
	if params.Asset.Kind != AssetNative && params.Asset.Kind != AssetToken {
		return paramErrf("unknown asset kind %q", params.Asset.Kind)
	}
	if params.Asset.Kind == AssetToken && params.Asset.Token == "" {
		return paramErrf("token asset requires a token identifier")
	}
	return nil
}

// CreatePact opens a new agreement in NEGOTIATING and escrows the creator's
// side of the deposit: payment+oracleFee+stake for a buyer, stake for a
// seller. value is the native amount attached to the call.
func (l *Ledger) CreatePact(ctx context.Context, caller Address, value int64, params CreateParams) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller.Zero() {
		return 0, paramErrf("caller address required")
	}
	now := l.now()
	if err := validateCreate(params, now); err != nil {
		return 0, err
	}

	stake := StakeFor(params.Payment)
	p := Pact{
		Payment:      params.Payment,
		Asset:        params.Asset,
		OracleFee:    params.OracleFee,
		Deadline:     params.Deadline,
		Status:       StatusNegotiating,
		SpecHash:     params.SpecHash,
		Oracles:      params.Oracles,
		Threshold:    params.Threshold,
		Initiator:    params.Initiator,
		ReviewPeriod: params.ReviewPeriod,
		CreatedAt:    now,
	}

	var required int64
	if params.Initiator == RoleBuyer {
		p.Buyer = caller
		p.BuyerStake = stake
		required = params.Payment + params.OracleFee + stake
	} else {
		p.Seller = caller
		p.SellerStake = stake
		required = stake
	}

	if err := l.collect(ctx, p.Asset, caller, value, required); err != nil {
		return 0, err
	}

	id, err := l.store.CreatePact(ctx, p)
	if err != nil {
		return 0, err
	}
	if err := l.store.AppendOpen(ctx, id); err != nil {
		return 0, err
	}
	if err := l.store.AppendParticipant(ctx, caller, id); err != nil {
		return 0, err
	}

	l.log.Infow("pact created", "id", id, "initiator", params.Initiator, "payment", params.Payment, "asset", params.Asset.Kind)
	l.emit(Event{Type: EventPactCreated, PactID: id, Actor: caller, Status: StatusNegotiating, Amount: required})
	return id, nil
}

// AcceptPact fills the open party slot with the caller, escrows the
// complementary deposit, and advances to FUNDED.
func (l *Ledger) AcceptPact(ctx context.Context, caller Address, value int64, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller.Zero() {
		return paramErrf("caller address required")
	}
	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusNegotiating); err != nil {
		return err
	}
	if p.IsParty(caller) {
		return roleErrf("creator cannot accept their own pact")
	}
	if !l.now().Before(p.Deadline) {
		return temporalErrf("pact %d deadline has passed", id)
	}

	stake := StakeFor(p.Payment)
	var required int64
	if p.Buyer.Zero() {
		p.Buyer = caller
		p.BuyerStake = stake
		required = p.Payment + p.OracleFee + stake
	} else {
		p.Seller = caller
		p.SellerStake = stake
		required = stake
	}

	if err := l.collect(ctx, p.Asset, caller, value, required); err != nil {
		return err
	}

	p.Status = StatusFunded
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	if err := l.store.RemoveOpen(ctx, id); err != nil {
		return err
	}
	if err := l.store.AppendParticipant(ctx, caller, id); err != nil {
		return err
	}

	l.log.Infow("pact accepted", "id", id, "acceptor", caller)
	l.emit(Event{Type: EventPactAccepted, PactID: id, Actor: caller, Status: StatusFunded, Amount: required})
	return nil
}

// StartWork marks the seller as working. Seller-only, FUNDED only.
func (l *Ledger) StartWork(ctx context.Context, caller Address, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusFunded); err != nil {
		return err
	}
	if caller != p.Seller {
		return roleErrf("only the seller may start work")
	}

	p.Status = StatusInProgress
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	l.emit(Event{Type: EventWorkStarted, PactID: id, Actor: caller, Status: StatusInProgress})
	return nil
}

// SubmitWork records the deliverable proof and moves the pact to
// PENDING_VERIFY. Rejected after the deadline: a late seller resolves
// through timeout, not delivery.
func (l *Ledger) SubmitWork(ctx context.Context, caller Address, id uint64, proofHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.store.GetPact(ctx, id)
	if err != nil {
		return err
	}
	if err := requireStatus(&p, StatusInProgress); err != nil {
		return err
	}
	if caller != p.Seller {
		return roleErrf("only the seller may submit work")
	}
	if l.now().After(p.Deadline) {
		return temporalErrf("pact %d deadline has passed", id)
	}
	if proofHash == "" {
		return paramErrf("proof hash required")
	}

	p.Status = StatusPendingVerify
	p.WorkProof = proofHash
	if err := l.store.PutPact(ctx, p); err != nil {
		return err
	}
	l.log.Infow("work submitted", "id", id, "proof", proofHash)
	l.emit(Event{Type: EventWorkSubmitted, PactID: id, Actor: caller, Status: StatusPendingVerify})
	return nil
}
