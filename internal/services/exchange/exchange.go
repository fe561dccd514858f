// Package exchange orchestrates swaps and liquidity operations across
// the pool registry, ledger and risk gate. It is the sole entry point
// for state-changing operations and the transaction boundary.
package exchange

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forkguard/dexsim/internal/domain"
	"github.com/forkguard/dexsim/internal/services/ledger"
	"github.com/forkguard/dexsim/internal/services/pool"
)

// riskGate classifies pool identities and applies blocking policy.
type riskGate interface {
	Classify(identity string) domain.Classification
	IsBlocked(c domain.Classification) bool
}

// journal persists boundary events for reporting consumers.
type journal interface {
	Append(event domain.Event) error
}

// publisher fans boundary events out to live subscribers.
type publisher interface {
	Publish(event domain.Event)
}

// Exchange owns the registry and ledger exclusively. Every operation
// holds two locks from the balance check through the commit: the
// account's lock, then the pool's lock, always in that order so the
// pairings cannot deadlock. The account lock keeps one account's
// concurrent operations on different pools from double-spending a
// balance both already checked; the pool lock serializes all traffic
// against one pool. Risk classification is resolved inside the critical
// section from the in-memory table, never fetched mid-transaction.
type Exchange struct {
	registry  *pool.Registry
	ledger    *ledger.Ledger
	gate      riskGate
	journal   journal
	publisher publisher
	logger    *zap.Logger

	mu           sync.Mutex
	poolLocks    map[string]*sync.Mutex
	accountLocks map[string]*sync.Mutex
}

// New creates an exchange. journal and publisher may be nil; gate is required.
func New(registry *pool.Registry, ldgr *ledger.Ledger, gate riskGate, jrnl journal, pub publisher, logger *zap.Logger) (*Exchange, error) {
	if registry == nil || ldgr == nil {
		return nil, errors.New("registry and ledger are required")
	}
	if gate == nil {
		return nil, errors.New("risk gate is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exchange{
		registry:     registry,
		ledger:       ldgr,
		gate:         gate,
		journal:      jrnl,
		publisher:    pub,
		logger:       logger,
		poolLocks:    make(map[string]*sync.Mutex),
		accountLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Ledger exposes the account state for seeding and audits.
func (e *Exchange) Ledger() *ledger.Ledger { return e.ledger }

// Registry exposes the pool registry for reporting and audits.
func (e *Exchange) Registry() *pool.Registry { return e.registry }

// SafeSwap validates balance and risk, then swaps amountIn of tokenIn
// for the pool's other token and settles both ledger legs as one commit.
func (e *Exchange) SafeSwap(account, tokenIn, tokenOut string, amountIn decimal.Decimal) (decimal.Decimal, error) {
	if amountIn.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput,
			"swap amount must be positive, got %s", amountIn)
	}

	p, err := e.registry.Get(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, err
	}

	unlock := e.lockAccountAndPool(account, p.PairKey())
	defer unlock()

	classification := e.gate.Classify(p.Identity())

	if !e.ledger.CheckSufficient(account, tokenIn, amountIn) {
		return decimal.Zero, errors.Wrapf(domain.ErrInsufficientBalance,
			"account %s: have %s %s, need %s",
			account, e.ledger.Balance(account, tokenIn), tokenIn, amountIn)
	}

	if e.gate.IsBlocked(classification) {
		e.logger.Warn("swap blocked by risk gate",
			zap.String("account", account),
			zap.String("pool", p.PairKey()),
			zap.String("identity", p.Identity()),
			zap.String("classification", classification.String()),
			zap.String("risk_score", classification.RiskScore.String()))
		return decimal.Zero, errors.Wrapf(domain.ErrSecurityBlocked,
			"pool %s (%s) classified as %s", p.PairKey(), p.Identity(), classification)
	}

	amountOut, fee, err := p.Apply(amountIn, tokenIn)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "swap %s %s in pool %s", amountIn, tokenIn, p.PairKey())
	}

	// Pool mutation and ledger settlement are one commit. A failure
	// here indicates an arithmetic or concurrency bug, never a user
	// error: the balance was checked under the same account and pool locks.
	if err := e.ledger.Debit(account, tokenIn, amountIn); err != nil {
		e.logger.Error("ledger debit failed after pool mutation",
			zap.String("account", account),
			zap.String("token", tokenIn),
			zap.String("amount", amountIn.String()),
			zap.Error(err))
		return decimal.Zero, errors.Wrap(err, "invariant violation: debit failed after balance check")
	}
	if err := e.ledger.Credit(account, p.Pair().Other(tokenIn), amountOut); err != nil {
		e.logger.Error("ledger credit failed after pool mutation",
			zap.String("account", account),
			zap.Error(err))
		return decimal.Zero, errors.Wrap(err, "invariant violation: credit failed")
	}

	event := domain.NewSwapEvent(uuid.NewString(), account, tokenIn, p.Pair().Other(tokenIn),
		amountIn, amountOut, fee, p.State())
	e.emit(event)

	e.logger.Info("swap executed",
		zap.String("account", account),
		zap.String("pool", p.PairKey()),
		zap.String("amount_in", amountIn.String()),
		zap.String("token_in", tokenIn),
		zap.String("amount_out", amountOut.String()),
		zap.String("fee", fee.String()))
	return amountOut, nil
}

// ProvideLiquidity checks both balances, mints pool shares and settles
// both deposit legs plus the share credit as one commit. The amounts
// follow the order of the supplied tokens, not the canonical pair order.
func (e *Exchange) ProvideLiquidity(account, tokenA, tokenB string, amountA, amountB decimal.Decimal) (decimal.Decimal, error) {
	p, err := e.registry.GetOrCreate(tokenA, tokenB)
	if err != nil {
		return decimal.Zero, err
	}

	// map deposit legs onto the canonical token order
	amount0, amount1 := amountA, amountB
	if tokenA != p.Pair().Token0 {
		amount0, amount1 = amountB, amountA
	}

	unlock := e.lockAccountAndPool(account, p.PairKey())
	defer unlock()

	if !e.ledger.CheckSufficient(account, p.Pair().Token0, amount0) {
		return decimal.Zero, errors.Wrapf(domain.ErrInsufficientBalance,
			"account %s: have %s %s, need %s",
			account, e.ledger.Balance(account, p.Pair().Token0), p.Pair().Token0, amount0)
	}
	if !e.ledger.CheckSufficient(account, p.Pair().Token1, amount1) {
		return decimal.Zero, errors.Wrapf(domain.ErrInsufficientBalance,
			"account %s: have %s %s, need %s",
			account, e.ledger.Balance(account, p.Pair().Token1), p.Pair().Token1, amount1)
	}

	shares, err := p.Mint(amount0, amount1)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "mint liquidity in pool %s", p.PairKey())
	}

	if err := e.ledger.Debit(account, p.Pair().Token0, amount0); err != nil {
		return decimal.Zero, errors.Wrap(err, "invariant violation: deposit debit failed after balance check")
	}
	if err := e.ledger.Debit(account, p.Pair().Token1, amount1); err != nil {
		return decimal.Zero, errors.Wrap(err, "invariant violation: deposit debit failed after balance check")
	}
	if err := e.ledger.RecordShareMint(account, p.PairKey(), shares); err != nil {
		return decimal.Zero, errors.Wrap(err, "invariant violation: share mint failed")
	}

	event := domain.NewLiquidityEvent(uuid.NewString(), account, p.PairKey(),
		amount0, amount1, shares, p.TotalShares())
	e.emit(event)

	e.logger.Info("liquidity provided",
		zap.String("account", account),
		zap.String("pool", p.PairKey()),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
		zap.String("shares", shares.String()))
	return shares, nil
}

// RemoveLiquidity burns the account's pool shares and credits both
// withdrawal legs. The account's ledger shares are checked before the
// pool burn, independently of the pool's own supply.
func (e *Exchange) RemoveLiquidity(account, pairKey string, shareAmount decimal.Decimal) (amount0, amount1 decimal.Decimal, err error) {
	if shareAmount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInvalidInput,
			"share amount must be positive, got %s", shareAmount)
	}

	p, err := e.registry.GetByKey(pairKey)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	unlock := e.lockAccountAndPool(account, p.PairKey())
	defer unlock()

	if e.ledger.Shares(account, pairKey).LessThan(shareAmount) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInsufficientShares,
			"account %s: have %s shares of %s, need %s",
			account, e.ledger.Shares(account, pairKey), pairKey, shareAmount)
	}

	amount0, amount1, err = p.Burn(shareAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrapf(err, "burn liquidity in pool %s", pairKey)
	}

	if err := e.ledger.Credit(account, p.Pair().Token0, amount0); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "invariant violation: withdrawal credit failed")
	}
	if err := e.ledger.Credit(account, p.Pair().Token1, amount1); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "invariant violation: withdrawal credit failed")
	}
	if err := e.ledger.RecordShareBurn(account, pairKey, shareAmount); err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "invariant violation: share burn failed after check")
	}

	event := domain.NewLiquidityEvent(uuid.NewString(), account, pairKey,
		amount0.Neg(), amount1.Neg(), shareAmount.Neg(), p.TotalShares())
	e.emit(event)

	e.logger.Info("liquidity removed",
		zap.String("account", account),
		zap.String("pool", pairKey),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
		zap.String("shares", shareAmount.String()))
	return amount0, amount1, nil
}

// lockAccountAndPool acquires the account lock, then the pool lock.
// The fixed order is what makes the pairings deadlock-free: no caller
// ever waits for an account lock while holding a pool lock.
func (e *Exchange) lockAccountAndPool(account, pairKey string) (unlock func()) {
	alock := keyedLock(&e.mu, e.accountLocks, account)
	plock := keyedLock(&e.mu, e.poolLocks, pairKey)
	alock.Lock()
	plock.Lock()
	return func() {
		plock.Unlock()
		alock.Unlock()
	}
}

func keyedLock(mu *sync.Mutex, locks map[string]*sync.Mutex, key string) *sync.Mutex {
	mu.Lock()
	defer mu.Unlock()
	l, ok := locks[key]
	if !ok {
		l = &sync.Mutex{}
		locks[key] = l
	}
	return l
}

func (e *Exchange) emit(event domain.Event) {
	if e.journal != nil {
		if err := e.journal.Append(event); err != nil {
			e.logger.Warn("failed to journal event",
				zap.String("event_id", event.EventID()),
				zap.Error(err))
		}
	}
	if e.publisher != nil {
		e.publisher.Publish(event)
	}
}
