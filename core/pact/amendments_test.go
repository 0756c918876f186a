package pact_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pactline-backend/core/pact"
)

func TestProposeAmendmentGuards(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	requireViolation(t, l.ProposeAmendment(ctx, oracleA, id, pact.Amendment{Payment: 2000}), pact.ViolationRole)
	requireViolation(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: -1}), pact.ViolationParameter)

	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: 2000}))

	a, pending, err := l.PendingAmendment(ctx, id)
	require.NoError(t, err)
	require.True(t, pending)
	assert.Equal(t, int64(2000), a.Payment)
	assert.Equal(t, buyer, a.Proposer)
}

func TestProposeAmendmentFrozenAfterDelivery(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := pendingVerifyPact(t, l)

	requireViolation(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: 2000}), pact.ViolationState)
}

func TestProposalReplacesPriorWholesale(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	newDeadline := t0.Add(48 * time.Hour)
	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: 2000, SpecHash: "spec-v2"}))
	require.NoError(t, l.ProposeAmendment(ctx, seller, id, pact.Amendment{Deadline: newDeadline}))

	a, pending, err := l.PendingAmendment(ctx, id)
	require.NoError(t, err)
	require.True(t, pending)
	assert.Equal(t, seller, a.Proposer)
	assert.Zero(t, a.Payment, "replaced proposal must not leak fields")
	assert.Empty(t, a.SpecHash)
	assert.Equal(t, newDeadline, a.Deadline)
}

func TestAcceptAmendmentZeroFieldsKeepTerms(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	before, err := l.GetPact(ctx, id)
	require.NoError(t, err)

	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{}))
	require.NoError(t, l.AcceptAmendment(ctx, seller, 0, id))

	after, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Payment, after.Payment)
	assert.Equal(t, before.Deadline, after.Deadline)
	assert.Equal(t, before.SpecHash, after.SpecHash)

	_, pending, err := l.PendingAmendment(ctx, id)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestAcceptAmendmentPaymentIncrease(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	custodyBefore := l.NativeCustody()

	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: 2000}))

	// Delta 1000 plus delta/10 stake top-up.
	requireViolation(t, l.AcceptAmendment(ctx, seller, 1000, id), pact.ViolationFunding)
	require.NoError(t, l.AcceptAmendment(ctx, seller, 1100, id))

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), p.Payment)
	assert.Equal(t, int64(200), p.SellerStake, "acceptor's stake grows by delta/10")
	assert.Equal(t, int64(100), p.BuyerStake)
	assert.Equal(t, custodyBefore+1100, l.NativeCustody())
}

func TestAcceptAmendmentPaymentDecreaseRefundsBuyer(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	require.NoError(t, l.ProposeAmendment(ctx, seller, id, pact.Amendment{Payment: 600}))
	require.NoError(t, l.AcceptAmendment(ctx, buyer, 0, id))

	p, err := l.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(600), p.Payment)
	assert.Equal(t, int64(400), l.NativeBalance(buyer), "over-escrowed payment returns to buyer")
}

func TestAcceptAmendmentRoleGuards(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := fundedPact(t, l)

	requireViolation(t, l.AcceptAmendment(ctx, buyer, 0, id), pact.ViolationState) // nothing pending

	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{SpecHash: "spec-v2"}))
	requireViolation(t, l.AcceptAmendment(ctx, buyer, 0, id), pact.ViolationRole) // own proposal
	requireViolation(t, l.AcceptAmendment(ctx, oracleA, 0, id), pact.ViolationRole)

	require.NoError(t, l.AcceptAmendment(ctx, seller, 0, id))
	requireViolation(t, l.AcceptAmendment(ctx, seller, 0, id), pact.ViolationState) // consumed
}

func TestAcceptAmendmentUnassignedCounterparty(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	id, err := l.CreatePact(ctx, buyer, buyerDeposit, baseParams())
	require.NoError(t, err)
	require.NoError(t, l.ProposeAmendment(ctx, buyer, id, pact.Amendment{Payment: 2000}))

	// No seller yet: nobody can accept.
	requireViolation(t, l.AcceptAmendment(ctx, seller, 1100, id), pact.ViolationRole)
}
