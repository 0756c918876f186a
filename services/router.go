package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pactline-backend/core/pact"
)

// Request lifecycle states for brokered verification work.
const (
	RequestOpen      = "open"
	RequestAssigned  = "assigned"
	RequestCompleted = "completed"
	RequestExpired   = "expired"
)

// VerificationRequest brokers one oracle slot's scoring work to a
// third-party validator. The router itself acts as the listed oracle when it
// forwards the validator's score to the ledger.
type VerificationRequest struct {
	ID         string       `json:"id"`
	PactID     uint64       `json:"pact_id"`
	OracleSlot pact.Address `json:"oracle_slot"`
	FeeShare   int64        `json:"fee_share"`
	Status     string       `json:"status"`
	AssignedTo pact.Address `json:"assigned_to,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at,omitempty"`
}

// Router is the job-routing marketplace at its interface: it assigns
// verification requests to eligible validators, expires stale assignments,
// and splits the fee share between validator and router.
type Router struct {
	mu        sync.Mutex
	ledger    *pact.Ledger
	registry  VerifierRegistry
	log       *zap.SugaredLogger
	requests  map[string]*VerificationRequest
	earned    map[pact.Address]int64
	assignTTL time.Duration
	// feeCutPercent of each fee share retained by the router; the rest is
	// credited to the validator.
	feeCutPercent int64
}

// NewRouter builds a router over the ledger and registry.
func NewRouter(ledger *pact.Ledger, registry VerifierRegistry, assignTTL time.Duration, feeCutPercent int64, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feeCutPercent < 0 || feeCutPercent > 100 {
		feeCutPercent = 0
	}
	return &Router{
		ledger:        ledger,
		registry:      registry,
		log:           logger.Sugar(),
		requests:      make(map[string]*VerificationRequest),
		earned:        make(map[pact.Address]int64),
		assignTTL:     assignTTL,
		feeCutPercent: feeCutPercent,
	}
}

// OpenRequest publishes a verification request for one oracle slot.
func (r *Router) OpenRequest(pactID uint64, oracleSlot pact.Address, feeShare int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if oracleSlot.Zero() {
		return "", pact.Err("oracle slot address required")
	}
	if feeShare < 0 {
		return "", pact.Err("fee share must not be negative")
	}
	req := &VerificationRequest{
		ID:         uuid.NewString(),
		PactID:     pactID,
		OracleSlot: oracleSlot,
		FeeShare:   feeShare,
		Status:     RequestOpen,
		CreatedAt:  time.Now(),
	}
	r.requests[req.ID] = req
	r.log.Infow("verification request opened", "request", req.ID, "pact", pactID, "slot", oracleSlot)
	return req.ID, nil
}

// Assign hands an open request to an eligible validator.
func (r *Router) Assign(requestID string, validator pact.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return pact.Err("verification request not found")
	}
	if req.Status != RequestOpen {
		return pact.Err("verification request is not open")
	}
	if r.registry != nil && !r.registry.IsEligible(validator) {
		return pact.Err("validator is not an eligible verifier")
	}
	req.Status = RequestAssigned
	req.AssignedTo = validator
	req.ExpiresAt = time.Now().Add(r.assignTTL)
	return nil
}

// Complete forwards the validator's score to the ledger as the oracle slot
// and settles the fee split.
func (r *Router) Complete(ctx context.Context, requestID string, score int, proof string) error {
	r.mu.Lock()
	req, ok := r.requests[requestID]
	if !ok {
		r.mu.Unlock()
		return pact.Err("verification request not found")
	}
	if req.Status != RequestAssigned {
		r.mu.Unlock()
		return pact.Err("verification request is not assigned")
	}
	r.mu.Unlock()

	if err := r.ledger.SubmitVerification(ctx, req.OracleSlot, req.PactID, score, proof); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	req.Status = RequestCompleted
	cut := req.FeeShare * r.feeCutPercent / 100
	r.earned[req.AssignedTo] += req.FeeShare - cut
	r.log.Infow("verification request completed", "request", requestID, "validator", req.AssignedTo, "score", score)
	return nil
}

// ExpireStale reopens assignments whose deadline lapsed without completion
// and returns how many were expired.
func (r *Router) ExpireStale(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Status == RequestAssigned && now.After(req.ExpiresAt) {
			req.Status = RequestOpen
			req.AssignedTo = ""
			req.ExpiresAt = time.Time{}
			n++
		}
	}
	return n
}

// Earned returns the fee total credited to a validator so far.
func (r *Router) Earned(validator pact.Address) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.earned[validator]
}

// Get returns a request by ID.
func (r *Router) Get(requestID string) (VerificationRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[requestID]
	if !ok {
		return VerificationRequest{}, false
	}
	return *req, true
}
