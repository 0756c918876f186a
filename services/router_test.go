package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pactline-backend/core/pact"
	pactstore "pactline-backend/storage/pact"
)

const (
	routerBuyer  = pact.Address("buyer-1")
	routerSeller = pact.Address("seller-1")
	oracleSlot   = pact.Address("panel-oracle")
	validator    = pact.Address("validator-1")
)

// routedPact builds a pact awaiting verification whose single oracle slot is
// brokered by the router.
func routedPact(t *testing.T, l *pact.Ledger) uint64 {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(24 * time.Hour)
	id, err := l.CreatePact(ctx, routerBuyer, 1200, pact.CreateParams{
		Initiator: pact.RoleBuyer,
		SpecHash:  "spec-abc",
		Deadline:  deadline,
		Oracles:   []pact.OracleWeight{{Address: oracleSlot, Weight: 100}},
		Threshold: 70,
		Payment:   1000,
		OracleFee: 100,
		Asset:     pact.NativeAsset(),
	})
	require.NoError(t, err)
	require.NoError(t, l.AcceptPact(ctx, routerSeller, 100, id))
	require.NoError(t, l.StartWork(ctx, routerSeller, id))
	require.NoError(t, l.SubmitWork(ctx, routerSeller, id, "proof-1"))
	return id
}

func newRouterHarness(t *testing.T) (*Router, *Registry, *pact.Ledger) {
	t.Helper()
	ledger := pact.NewLedger(pactstore.NewMemoryStore(), pact.NewMemoryVault(), nil)
	registry := NewRegistry(admin, 0)
	router := NewRouter(ledger, registry, time.Hour, 10, nil)
	return router, registry, ledger
}

func TestAssignRequiresEligibleValidator(t *testing.T) {
	router, registry, ledger := newRouterHarness(t)
	id := routedPact(t, ledger)

	reqID, err := router.OpenRequest(id, oracleSlot, 100)
	require.NoError(t, err)

	require.Error(t, router.Assign(reqID, validator), "unregistered validator")
	require.Error(t, router.Assign("bogus", validator))

	require.NoError(t, registry.Register(validator, nil, 0))
	require.NoError(t, router.Assign(reqID, validator))

	req, ok := router.Get(reqID)
	require.True(t, ok)
	assert.Equal(t, RequestAssigned, req.Status)
	assert.Equal(t, validator, req.AssignedTo)

	require.Error(t, router.Assign(reqID, validator), "already assigned")
}

func TestCompleteForwardsScoreAndSplitsFee(t *testing.T) {
	router, registry, ledger := newRouterHarness(t)
	id := routedPact(t, ledger)
	require.NoError(t, registry.Register(validator, nil, 0))

	reqID, err := router.OpenRequest(id, oracleSlot, 100)
	require.NoError(t, err)
	require.NoError(t, router.Assign(reqID, validator))

	ctx := context.Background()
	require.Error(t, router.Complete(ctx, "bogus", 90, ""))
	require.NoError(t, router.Complete(ctx, reqID, 90, "evidence"))

	// The score landed on the ledger under the oracle slot.
	v, err := ledger.GetVerification(ctx, id, oracleSlot)
	require.NoError(t, err)
	assert.Equal(t, 90, v.Score)

	// Validator keeps the fee share minus the 10% router cut.
	assert.Equal(t, int64(90), router.Earned(validator))

	req, _ := router.Get(reqID)
	assert.Equal(t, RequestCompleted, req.Status)
	require.Error(t, router.Complete(ctx, reqID, 90, ""), "not assigned anymore")
}

func TestCompleteRejectedByLedgerKeepsRequestAssigned(t *testing.T) {
	router, registry, ledger := newRouterHarness(t)
	id := routedPact(t, ledger)
	require.NoError(t, registry.Register(validator, nil, 0))

	reqID, err := router.OpenRequest(id, oracleSlot, 100)
	require.NoError(t, err)
	require.NoError(t, router.Assign(reqID, validator))

	require.Error(t, router.Complete(context.Background(), reqID, 101, ""), "ledger rejects the score")

	req, _ := router.Get(reqID)
	assert.Equal(t, RequestAssigned, req.Status, "failed completion keeps the assignment")
	assert.Zero(t, router.Earned(validator))
}

func TestExpireStaleReopens(t *testing.T) {
	router, registry, ledger := newRouterHarness(t)
	id := routedPact(t, ledger)
	require.NoError(t, registry.Register(validator, nil, 0))

	reqID, err := router.OpenRequest(id, oracleSlot, 100)
	require.NoError(t, err)
	require.NoError(t, router.Assign(reqID, validator))

	assert.Zero(t, router.ExpireStale(time.Now()))
	assert.Equal(t, 1, router.ExpireStale(time.Now().Add(2*time.Hour)))

	req, _ := router.Get(reqID)
	assert.Equal(t, RequestOpen, req.Status)
	assert.True(t, req.AssignedTo.Zero())

	// Reopened requests can be assigned again.
	require.NoError(t, router.Assign(reqID, validator))
}

func TestOpenRequestValidation(t *testing.T) {
	router, _, _ := newRouterHarness(t)

	_, err := router.OpenRequest(1, "", 100)
	require.Error(t, err)
	_, err = router.OpenRequest(1, oracleSlot, -1)
	require.Error(t, err)
}
