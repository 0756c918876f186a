package pact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corepact "pactline-backend/core/pact"
)

func testPact(buyer corepact.Address) corepact.Pact {
	return corepact.Pact{
		Buyer:    buyer,
		Payment:  1000,
		Asset:    corepact.NativeAsset(),
		Status:   corepact.StatusNegotiating,
		Deadline: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Oracles:  []corepact.OracleWeight{{Address: "oracle-a", Weight: 100}},
	}
}

func TestCreateAssignsDenseIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for want := uint64(1); want <= 3; want++ {
		id, err := s.CreatePact(ctx, testPact("buyer-1"))
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestGetPutPact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetPact(ctx, 42)
	assert.ErrorIs(t, err, corepact.ErrPactNotFound)
	assert.ErrorIs(t, s.PutPact(ctx, corepact.Pact{ID: 42}), corepact.ErrPactNotFound)

	id, err := s.CreatePact(ctx, testPact("buyer-1"))
	require.NoError(t, err)

	p, err := s.GetPact(ctx, id)
	require.NoError(t, err)
	p.Status = corepact.StatusFunded
	require.NoError(t, s.PutPact(ctx, p))

	got, err := s.GetPact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, corepact.StatusFunded, got.Status)
}

func TestOpenIndexSwapAndPop(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		id, err := s.CreatePact(ctx, testPact("buyer-1"))
		require.NoError(t, err)
		require.NoError(t, s.AppendOpen(ctx, id))
	}

	// Removing from the middle keeps every other member, count drops by one.
	require.NoError(t, s.RemoveOpen(ctx, 3))

	n, err := s.OpenPactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ids, err := s.OpenPacts(ctx, 0, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2, 4, 5}, ids)

	// Removal is idempotent.
	require.NoError(t, s.RemoveOpen(ctx, 3))
	n, err = s.OpenPactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// The swapped-in member is still removable afterwards.
	require.NoError(t, s.RemoveOpen(ctx, 5))
	ids, err = s.OpenPacts(ctx, 0, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2, 4}, ids)
}

func TestOpenIndexAppendIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.AppendOpen(ctx, 7))
	require.NoError(t, s.AppendOpen(ctx, 7))

	n, err := s.OpenPactCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestParticipantIndexAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	addr := corepact.Address("buyer-1")
	for _, id := range []uint64{3, 1, 8} {
		require.NoError(t, s.AppendParticipant(ctx, addr, id))
	}

	ids, err := s.ParticipantPacts(ctx, addr, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 1, 8}, ids, "join order preserved")

	n, err := s.ParticipantPactCount(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	addr := corepact.Address("buyer-1")
	for id := uint64(1); id <= 10; id++ {
		require.NoError(t, s.AppendParticipant(ctx, addr, id))
	}

	page, err := s.ParticipantPacts(ctx, addr, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5, 6, 7}, page)

	page, err = s.ParticipantPacts(ctx, addr, 8, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{9, 10}, page)

	page, err = s.ParticipantPacts(ctx, addr, 50, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestVerificationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetVerification(ctx, 1, "oracle-a")
	assert.ErrorIs(t, err, corepact.ErrVerificationNotFound)

	v := corepact.Verification{PactID: 1, Oracle: "oracle-a", Score: 88, Submitted: true}
	require.NoError(t, s.PutVerification(ctx, v))

	got, err := s.GetVerification(ctx, 1, "oracle-a")
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = s.GetVerification(ctx, 1, "oracle-b")
	assert.ErrorIs(t, err, corepact.ErrVerificationNotFound)
}

func TestAmendmentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.GetAmendment(ctx, 1)
	assert.ErrorIs(t, err, corepact.ErrAmendmentNotFound)

	a := corepact.Amendment{PactID: 1, Payment: 2000, Proposer: "buyer-1", Pending: true}
	require.NoError(t, s.PutAmendment(ctx, a))

	got, err := s.GetAmendment(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	a.Pending = false
	require.NoError(t, s.PutAmendment(ctx, a))
	got, err = s.GetAmendment(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.Pending)
}

func TestReputationZeroValueWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r, err := s.GetReputation(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, corepact.Reputation{}, r)

	r.Address = "buyer-1"
	r.CompletionsAsBuyer = 2
	require.NoError(t, s.PutReputation(ctx, r))

	got, err := s.GetReputation(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.CompletionsAsBuyer)
}
