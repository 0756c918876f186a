package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pactline-backend/core/pact"
)

const admin = pact.Address("admin-1")

func TestRegisterAndEligibility(t *testing.T) {
	r := NewRegistry(admin, 100)

	require.Error(t, r.Register("", nil, 500), "empty address rejected")
	require.Error(t, r.Register("validator-1", nil, 50), "stake below minimum")

	require.NoError(t, r.Register("validator-1", []string{"code-review"}, 500))
	assert.True(t, r.IsEligible("validator-1"))
	assert.False(t, r.IsEligible("validator-2"))

	rec, ok := r.Get("validator-1")
	require.True(t, ok)
	assert.Equal(t, []string{"code-review"}, rec.Capabilities)
	assert.Equal(t, int64(500), rec.Stake)
	assert.True(t, rec.Active)
}

func TestDeregister(t *testing.T) {
	r := NewRegistry(admin, 0)
	require.Error(t, r.Deregister("validator-1"), "unknown verifier")

	require.NoError(t, r.Register("validator-1", nil, 0))
	require.NoError(t, r.Deregister("validator-1"))
	assert.False(t, r.IsEligible("validator-1"))

	// Record survives for audit.
	rec, ok := r.Get("validator-1")
	require.True(t, ok)
	assert.False(t, rec.Active)
}

func TestSetMinStakeAdminOnly(t *testing.T) {
	r := NewRegistry(admin, 0)
	require.NoError(t, r.Register("validator-1", nil, 100))

	require.Error(t, r.SetMinStake("validator-1", 200))
	require.Error(t, r.SetMinStake(admin, -1))
	require.NoError(t, r.SetMinStake(admin, 200))

	// Raising the floor retroactively disqualifies underfunded verifiers.
	assert.False(t, r.IsEligible("validator-1"))
}

func TestList(t *testing.T) {
	r := NewRegistry(admin, 0)
	require.NoError(t, r.Register("validator-1", nil, 10))
	require.NoError(t, r.Register("validator-2", nil, 20))
	require.NoError(t, r.Deregister("validator-2"))

	assert.Len(t, r.List(), 2)
}
