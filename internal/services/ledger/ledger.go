// Package ledger tracks per-account token balances and LP share balances.
// It is the only component allowed to mutate account state.
package ledger

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/forkguard/dexsim/internal/domain"
)

// Ledger holds account balances and LP shares. Entries are created
// lazily with value zero on first reference and only ever zeroed,
// never removed. All methods are goroutine-safe.
type Ledger struct {
	mu sync.RWMutex
	// balances: account -> token -> amount
	balances map[string]map[string]decimal.Decimal
	// shares: account -> pair key -> LP shares
	shares map[string]map[string]decimal.Decimal
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[string]map[string]decimal.Decimal),
		shares:   make(map[string]map[string]decimal.Decimal),
	}
}

// Balance returns the account's balance of the token (zero when unset).
func (l *Ledger) Balance(account, token string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account][token]
}

// CheckSufficient reports whether the account holds at least amount of token.
func (l *Ledger) CheckSufficient(account, token string, amount decimal.Decimal) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account][token].GreaterThanOrEqual(amount)
}

// Credit increases the account's balance of token.
func (l *Ledger) Credit(account, token string, amount decimal.Decimal) error {
	if amount.LessThan(decimal.Zero) {
		return errors.Wrapf(domain.ErrInvalidInput, "credit amount must be non-negative, got %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.accountBalances(account)
	bal[token] = bal[token].Add(amount)
	return nil
}

// Debit decreases the account's balance of token. A debit that would
// drive the balance below zero fails with ErrNegativeBalance and
// changes nothing; balances are never clamped silently.
func (l *Ledger) Debit(account, token string, amount decimal.Decimal) error {
	if amount.LessThan(decimal.Zero) {
		return errors.Wrapf(domain.ErrInvalidInput, "debit amount must be non-negative, got %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.accountBalances(account)
	next := bal[token].Sub(amount)
	if next.LessThan(decimal.Zero) {
		return errors.Wrapf(domain.ErrNegativeBalance,
			"debit of %s %s from %s: have %s", amount, token, account, bal[token])
	}
	bal[token] = next
	return nil
}

// Shares returns the account's LP shares for the pair key.
func (l *Ledger) Shares(account, pairKey string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shares[account][pairKey]
}

// RecordShareMint credits LP shares to the account.
func (l *Ledger) RecordShareMint(account, pairKey string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.Wrapf(domain.ErrInvalidInput, "share mint must be positive, got %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sh := l.accountShares(account)
	sh[pairKey] = sh[pairKey].Add(amount)
	return nil
}

// RecordShareBurn debits LP shares from the account. The check is
// independent of the pool's own share supply: the two stay in lockstep,
// and this duplication is the integrity check across components.
func (l *Ledger) RecordShareBurn(account, pairKey string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.Wrapf(domain.ErrInvalidInput, "share burn must be positive, got %s", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sh := l.accountShares(account)
	next := sh[pairKey].Sub(amount)
	if next.LessThan(decimal.Zero) {
		return errors.Wrapf(domain.ErrInsufficientShares,
			"burn of %s shares of %s from %s: have %s", amount, pairKey, account, sh[pairKey])
	}
	sh[pairKey] = next
	return nil
}

// TotalShares sums every account's recorded shares for the pair key.
// Audits compare the result with the pool's own share supply.
func (l *Ledger) TotalShares(pairKey string) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, sh := range l.shares {
		total = total.Add(sh[pairKey])
	}
	return total
}

func (l *Ledger) accountBalances(account string) map[string]decimal.Decimal {
	bal, ok := l.balances[account]
	if !ok {
		bal = make(map[string]decimal.Decimal)
		l.balances[account] = bal
	}
	return bal
}

func (l *Ledger) accountShares(account string) map[string]decimal.Decimal {
	sh, ok := l.shares[account]
	if !ok {
		sh = make(map[string]decimal.Decimal)
		l.shares[account] = sh
	}
	return sh
}
