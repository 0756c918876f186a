package pact

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// TokenVault moves fungible-token value on behalf of the ledger. Pull
// requires the payer to have granted the ledger an allowance beforehand;
// pulled funds sit in the vault's custody account until pushed out on payout.
type TokenVault interface {
	Pull(ctx context.Context, token string, from Address, amount int64) error
	Push(ctx context.Context, token string, to Address, amount int64) error
}

// MemoryVault is an in-process token ledger with balances, allowances, and a
// custody account per token.
type MemoryVault struct {
	mu         sync.Mutex
	balances   map[string]map[Address]int64
	allowances map[string]map[Address]int64
	custody    map[string]int64
}

// NewMemoryVault returns an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		balances:   make(map[string]map[Address]int64),
		allowances: make(map[string]map[Address]int64),
		custody:    make(map[string]int64),
	}
}

func bucket(m map[string]map[Address]int64, token string) map[Address]int64 {
	b, ok := m[token]
	if !ok {
		b = make(map[Address]int64)
		m[token] = b
	}
	return b
}

// Mint credits freshly issued token units to an address.
func (v *MemoryVault) Mint(token string, to Address, amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bucket(v.balances, token)[to] += amount
}

// Approve grants the ledger permission to pull up to amount from owner.
func (v *MemoryVault) Approve(token string, owner Address, amount int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	bucket(v.allowances, token)[owner] = amount
}

// BalanceOf returns the free balance of addr for the token.
func (v *MemoryVault) BalanceOf(token string, addr Address) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bucket(v.balances, token)[addr]
}

// CustodyBalance returns the total token value held for open pacts.
func (v *MemoryVault) CustodyBalance(token string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody[token]
}

// Pull moves amount from the payer's balance into custody, consuming
// allowance.
func (v *MemoryVault) Pull(ctx context.Context, token string, from Address, amount int64) error {
	if amount < 0 {
		return errors.Errorf("negative pull amount %d", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	allow := bucket(v.allowances, token)
	bal := bucket(v.balances, token)
	if allow[from] < amount {
		return errors.Errorf("allowance %d below required %d for %s", allow[from], amount, from)
	}
	if bal[from] < amount {
		return errors.Errorf("balance %d below required %d for %s", bal[from], amount, from)
	}
	allow[from] -= amount
	bal[from] -= amount
	v.custody[token] += amount
	return nil
}

// Push moves amount from custody to the recipient's balance.
func (v *MemoryVault) Push(ctx context.Context, token string, to Address, amount int64) error {
	if amount < 0 {
		return errors.Errorf("negative push amount %d", amount)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.custody[token] < amount {
		return errors.Errorf("custody %d below payout %d for token %s", v.custody[token], amount, token)
	}
	v.custody[token] -= amount
	bucket(v.balances, token)[to] += amount
	return nil
}

// collect takes the required deposit from the caller for a pact in its
// asset. Native value arrives attached to the call and must match exactly;
// token-denominated pacts must not carry native value and are pulled from
// the vault instead. Runs after every state guard, never before.
func (l *Ledger) collect(ctx context.Context, asset Asset, from Address, value, required int64) error {
	switch asset.Kind {
	case AssetToken:
		if value != 0 {
			return fundingErrf("native value %d attached to token-denominated pact", value)
		}
		if required == 0 {
			return nil
		}
		if l.vault == nil {
			return fundingErrf("no token vault configured")
		}
		if err := l.vault.Pull(ctx, asset.Token, from, required); err != nil {
			return &RuleError{Violation: ViolationFunding, Reason: err.Error()}
		}
		return nil
	default:
		if value != required {
			return fundingErrf("deposit %d does not match required %d", value, required)
		}
		l.nativeCustody += required
		return nil
	}
}

// disburse releases custody funds to a party. Native payouts credit the
// recipient's withdrawable balance; token payouts push out of the vault.
func (l *Ledger) disburse(ctx context.Context, asset Asset, to Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	switch asset.Kind {
	case AssetToken:
		return l.vault.Push(ctx, asset.Token, to, amount)
	default:
		l.nativeCustody -= amount
		l.payouts[to] += amount
		return nil
	}
}

// NativeBalance returns the caller's withdrawable native balance.
func (l *Ledger) NativeBalance(addr Address) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payouts[addr]
}

// NativeCustody returns the total native value currently escrowed.
func (l *Ledger) NativeCustody() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nativeCustody
}

// WithdrawNative removes value from the caller's withdrawable balance. The
// actual transfer out of the process is the caller's concern.
func (l *Ledger) WithdrawNative(caller Address, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 {
		return paramErrf("withdraw amount must be positive")
	}
	if l.payouts[caller] < amount {
		return fundingErrf("balance %d below withdrawal %d", l.payouts[caller], amount)
	}
	l.payouts[caller] -= amount
	return nil
}
