package pact_test

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
	buyer   = pact.Address("buyer-1")
	seller  = pact.Address("seller-1")
	oracleA = pact.Address("oracle-a")
	oracleB = pact.Address("oracle-b")
	arbiter = pact.Address("arbiter-1")
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newLedger returns a memory-backed ledger with a controllable clock. Mutate
// *clock to advance time.
func newLedger(t *testing.T) (*pact.Ledger, *time.Time) {
	t.Helper()
	clock := t0
	l := pact.NewLedger(pactstore.NewMemoryStore(), pact.NewMemoryVault(), nil)
	l.SetClock(func() time.Time { return clock })
	return l, &clock
}

// baseParams is a buyer-initiated native pact: payment 1000, stake 100,
// oracle fee 100 split 60/40, threshold 70, one day to deliver.
func baseParams() pact.CreateParams {
	return pact.CreateParams{
		Initiator: pact.RoleBuyer,
		SpecHash:  "spec-abc",
		Deadline:  t0.Add(24 * time.Hour),
		Oracles: []pact.OracleWeight{
			{Address: oracleA, Weight: 60},
			{Address: oracleB, Weight: 40},
		},
		Threshold:    70,
		Payment:      1000,
		ReviewPeriod: time.Hour,
		OracleFee:    100,
		Asset:        pact.NativeAsset(),
	}
}

const (
	buyerDeposit  = int64(1200) // payment + fee + stake
	sellerDeposit = int64(100)  // stake
)

// fundedPact creates and accepts a buyer-initiated pact.
func fundedPact(t *testing.T, l *pact.Ledger) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := l.CreatePact(ctx, buyer, buyerDeposit, baseParams())
	require.NoError(t, err)
	require.NoError(t, l.AcceptPact(ctx, seller, sellerDeposit, id))
	return id
}

// verifiedPact drives a funded pact through delivery and a passing panel.
func verifiedPact(t *testing.T, l *pact.Ledger) uint64 {
	t.Helper()
	ctx := context.Background()
	id := fundedPact(t, l)
	require.NoError(t, l.StartWork(ctx, seller, id))
	require.NoError(t, l.SubmitWork(ctx, seller, id, "proof-1"))
	require.NoError(t, l.SubmitVerification(ctx, oracleA, id, 80, ""))
	require.NoError(t, l.SubmitVerification(ctx, oracleB, id, 60, ""))
	_, err := l.FinalizeVerification(ctx, buyer, id)
	require.NoError(t, err)
	return id
}

func requireViolation(t *testing.T, err error, v pact.Violation) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pact.IsViolation(err, v), "want %s violation, got %v", v, err)
}

func TestCreatePactBuyerInitiated(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	id, err := l.CreatePact(ctx, buyer, buyerDeposit, baseParams())
	require.NoError(t, err)

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, pact.StatusNegotiating, p.Status)
	assert.Equal(t, buyer, p.Buyer)
	assert.True(t, p.Seller.Zero())
	assert.Equal(t, int64(100), p.BuyerStake)
	assert.Equal(t, int64(0), p.SellerStake)
	assert.Equal(t, buyerDeposit, l.NativeCustody())

	open, err := l.OpenPacts(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, id, open[0].ID)
}

func TestCreatePactSellerInitiated(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	params := baseParams()
	params.Initiator = pact.RoleSeller
	id, err := l.CreatePact(ctx, seller, sellerDeposit, params)
	require.NoError(t, err)

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, seller, p.Seller)
	assert.True(t, p.Buyer.Zero())
	assert.Equal(t, int64(100), p.SellerStake)
	assert.Equal(t, sellerDeposit, l.NativeCustody())
}

func TestCreatePactValidation(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*pact.CreateParams)
		violate pact.Violation
	}{
		{"zero payment", func(p *pact.CreateParams) { p.Payment = 0 }, pact.ViolationParameter},
		{"negative fee", func(p *pact.CreateParams) { p.OracleFee = -1 }, pact.ViolationParameter},
		{"past deadline", func(p *pact.CreateParams) { p.Deadline = t0.Add(-time.Minute) }, pact.ViolationTemporal},
		{"no oracles", func(p *pact.CreateParams) { p.Oracles = nil }, pact.ViolationParameter},
		{"weights under 100", func(p *pact.CreateParams) {
			p.Oracles = []pact.OracleWeight{{Address: oracleA, Weight: 99}}
		}, pact.ViolationParameter},
		{"weights over 100", func(p *pact.CreateParams) {
			p.Oracles = []pact.OracleWeight{{Address: oracleA, Weight: 60}, {Address: oracleB, Weight: 41}}
		}, pact.ViolationParameter},
		{"threshold out of range", func(p *pact.CreateParams) { p.Threshold = 101 }, pact.ViolationParameter},
		{"bad initiator", func(p *pact.CreateParams) { p.Initiator = "oracle" }, pact.ViolationParameter},
		{"token without identifier", func(p *pact.CreateParams) { p.Asset = pact.Asset{Kind: pact.AssetToken} }, pact.ViolationParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := baseParams()
			tc.mutate(&params)
			_, err := l.CreatePact(ctx, buyer, buyerDeposit, params)
			requireViolation(t, err, tc.violate)
		})
	}
}

func TestCreatePactWrongDeposit(t *testing.T) {
	l, _ := newLedger(t)

	_, err := l.CreatePact(context.Background(), buyer, buyerDeposit-1, baseParams())
	requireViolation(t, err, pact.ViolationFunding)
	assert.Equal(t, int64(0), l.NativeCustody())
}

func TestAcceptPact(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	id, err := l.CreatePact(ctx, buyer, buyerDeposit, baseParams())
	require.NoError(t, err)
	require.NoError(t, l.AcceptPact(ctx, seller, sellerDeposit, id))

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, pact.StatusFunded, p.Status)
	assert.Equal(t, seller, p.Seller)
	assert.Equal(t, int64(100), p.SellerStake)
	assert.Equal(t, buyerDeposit+sellerDeposit, l.NativeCustody())

	count, err := l.OpenPactCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "accepted pact must leave the open index")
}

func TestAcceptPactGuards(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()

	id, err := l.CreatePact(ctx, buyer, buyerDeposit, baseParams())
	require.NoError(t, err)

	requireViolation(t, l.AcceptPact(ctx, buyer, sellerDeposit, id), pact.ViolationRole)
	requireViolation(t, l.AcceptPact(ctx, seller, sellerDeposit-1, id), pact.ViolationFunding)

	*clock = t0.Add(25 * time.Hour)
	requireViolation(t, l.AcceptPact(ctx, seller, sellerDeposit, id), pact.ViolationTemporal)

	*clock = t0
	require.NoError(t, l.AcceptPact(ctx, seller, sellerDeposit, id))
	requireViolation(t, l.AcceptPact(ctx, oracleA, sellerDeposit, id), pact.ViolationState)
}

func TestStartWorkSellerOnly(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	requireViolation(t, l.StartWork(ctx, buyer, id), pact.ViolationRole)
	require.NoError(t, l.StartWork(ctx, seller, id))
	requireViolation(t, l.StartWork(ctx, seller, id), pact.ViolationState)
}

func TestSubmitWork(t *testing.T) {
	l, clock := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)
	require.NoError(t, l.StartWork(ctx, seller, id))

	requireViolation(t, l.SubmitWork(ctx, buyer, id, "proof-1"), pact.ViolationRole)
	requireViolation(t, l.SubmitWork(ctx, seller, id, ""), pact.ViolationParameter)

	*clock = t0.Add(25 * time.Hour)
	requireViolation(t, l.SubmitWork(ctx, seller, id, "proof-1"), pact.ViolationTemporal)

	*clock = t0.Add(time.Hour)
	require.NoError(t, l.SubmitWork(ctx, seller, id, "proof-1"))

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, pact.StatusPendingVerify, p.Status)
	assert.Equal(t, "proof-1", p.WorkProof)
}

func TestParticipantIndex(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	for _, addr := range []pact.Address{buyer, seller} {
		pacts, err := l.PactsOf(ctx, addr, 0, 10)
		require.NoError(t, err)
		require.Len(t, pacts, 1)
		assert.Equal(t, id, pacts[0].ID)

		n, err := l.PactCountOf(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestEventsPublished(t *testing.T) {
	l, _ := newLedger(t)
	fundedPact(t, l)

	events := l.Events().Recent(0)
	require.Len(t, events, 2)
	assert.Equal(t, pact.EventPactCreated, events[0].Type)
	assert.Equal(t, pact.EventPactAccepted, events[1].Type)
}
