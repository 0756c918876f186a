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

const testToken = "usd-t"

func newTokenLedger(t *testing.T) (*pact.Ledger, *pact.MemoryVault) {
	t.Helper()
	vault := pact.NewMemoryVault()
	l := pact.NewLedger(pactstore.NewMemoryStore(), vault, nil)
	l.SetClock(func() time.Time { return t0 })
	return l, vault
}

func TestMemoryVaultPullRequiresAllowanceAndBalance(t *testing.T) {
	ctx := context.Background()
	v := pact.NewMemoryVault()
	v.Mint(testToken, buyer, 500)

	err := v.Pull(ctx, testToken, buyer, 100)
	require.Error(t, err, "no allowance granted")

	v.Approve(testToken, buyer, 1000)
	err = v.Pull(ctx, testToken, buyer, 600)
	require.Error(t, err, "balance below pull")

	require.NoError(t, v.Pull(ctx, testToken, buyer, 400))
	assert.Equal(t, int64(100), v.BalanceOf(testToken, buyer))
	assert.Equal(t, int64(400), v.CustodyBalance(testToken))
}

func TestMemoryVaultPushBoundedByCustody(t *testing.T) {
	ctx := context.Background()
	v := pact.NewMemoryVault()
	v.Mint(testToken, buyer, 400)
	v.Approve(testToken, buyer, 400)
	require.NoError(t, v.Pull(ctx, testToken, buyer, 400))

	require.Error(t, v.Push(ctx, testToken, seller, 401))
	require.NoError(t, v.Push(ctx, testToken, seller, 400))
	assert.Equal(t, int64(400), v.BalanceOf(testToken, seller))
	assert.Equal(t, int64(0), v.CustodyBalance(testToken))
}

func TestTokenPactLifecycle(t *testing.T) {
	l, vault := newTokenLedger(t)
	ctx := context.Background()

	vault.Mint(testToken, buyer, 5000)
	vault.Mint(testToken, seller, 5000)
	vault.Approve(testToken, buyer, 5000)
	vault.Approve(testToken, seller, 5000)

	params := baseParams()
	params.Asset = pact.TokenAsset(testToken)

	// Token pacts must not carry native value.
	_, err := l.CreatePact(ctx, buyer, buyerDeposit, params)
	requireViolation(t, err, pact.ViolationFunding)

	id, err := l.CreatePact(ctx, buyer, 0, params)
	require.NoError(t, err)
	assert.Equal(t, int64(5000-buyerDeposit), vault.BalanceOf(testToken, buyer))
	assert.Equal(t, buyerDeposit, vault.CustodyBalance(testToken))

	require.NoError(t, l.AcceptPact(ctx, seller, 0, id))
	require.NoError(t, l.StartWork(ctx, seller, id))
	require.NoError(t, l.SubmitWork(ctx, seller, id, "proof-1"))
	require.NoError(t, l.SubmitVerification(ctx, oracleA, id, 90, ""))
	require.NoError(t, l.SubmitVerification(ctx, oracleB, id, 90, ""))
	_, err = l.FinalizeVerification(ctx, buyer, id)
	require.NoError(t, err)
	require.NoError(t, l.ApproveWork(ctx, buyer, id))

	// Conservation: every deposited unit lands with a participant. The seller
	// nets +1000: their 100 stake went in at accept and comes back with the
	// 1000 payment.
	assert.Equal(t, int64(0), vault.CustodyBalance(testToken))
	assert.Equal(t, int64(5000+1000), vault.BalanceOf(testToken, seller))
	assert.Equal(t, int64(5000-buyerDeposit+100), vault.BalanceOf(testToken, buyer))
	assert.Equal(t, int64(60), vault.BalanceOf(testToken, oracleA))
	assert.Equal(t, int64(40), vault.BalanceOf(testToken, oracleB))
}

func TestTokenPactInsufficientAllowance(t *testing.T) {
	l, vault := newTokenLedger(t)
	ctx := context.Background()

	vault.Mint(testToken, buyer, 5000)
	vault.Approve(testToken, buyer, 100) // below the 1200 deposit

	params := baseParams()
	params.Asset = pact.TokenAsset(testToken)
	_, err := l.CreatePact(ctx, buyer, 0, params)
	requireViolation(t, err, pact.ViolationFunding)
	assert.Equal(t, int64(0), vault.CustodyBalance(testToken))
}

func TestNativeConservation(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := verifiedPact(t, l)
	require.NoError(t, l.ApproveWork(ctx, buyer, id))

	total := l.NativeBalance(buyer) + l.NativeBalance(seller) +
		l.NativeBalance(oracleA) + l.NativeBalance(oracleB) + l.NativeCustody()
	assert.Equal(t, buyerDeposit+sellerDeposit, total)
}

func TestWithdrawNative(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	id := verifiedPact(t, l)
	require.NoError(t, l.ApproveWork(ctx, buyer, id))

	requireViolation(t, l.WithdrawNative(buyer, 0), pact.ViolationParameter)
	requireViolation(t, l.WithdrawNative(buyer, 101), pact.ViolationFunding)
	require.NoError(t, l.WithdrawNative(buyer, 100))
	assert.Equal(t, int64(0), l.NativeBalance(buyer))
}
