// Package pool implements constant-product liquidity pools and their registry.
package pool

import (
	"math"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/forkguard/dexsim/internal/domain"
)

// DefaultFeeBps is the per-pool swap fee applied unless overridden: 30 bps (0.3%).
const DefaultFeeBps int64 = 30

// quotePrecision is the number of decimal places kept when pricing a
// swap. The quotient is truncated toward zero, never rounded up, so the
// pool always pays out at most the exact curve value and the constant
// product cannot decrease.
const quotePrecision int32 = 16

var (
	bpsDenominator = decimal.NewFromInt(10000)
	// ratioTolerance bounds how far a follow-up deposit may deviate from
	// the pool's reserve ratio: 1%.
	ratioTolerance = decimal.New(1, -2)
)

// Pool owns one pair's reserves, fee accumulator and LP share supply.
//
// Pool methods are not goroutine-safe: the exchange serializes all
// operations against one pool behind a per-pool lock (see exchange
// package), so the hot path carries no redundant locking here. The
// identity is the one exception: adversarial scenarios republish it
// while trading is in flight, so it is read and written atomically.
type Pool struct {
	pair        domain.Pair
	reserves    map[string]decimal.Decimal
	feeRateBps  decimal.Decimal
	totalShares decimal.Decimal
	feeAccrued  decimal.Decimal
	identity    atomic.Pointer[string]
}

// New creates an empty pool for the pair with the given fee.
// Reserves stay zero until the first liquidity deposit.
func New(pair domain.Pair, feeBps int64) *Pool {
	if feeBps < 0 {
		feeBps = DefaultFeeBps
	}
	p := &Pool{
		pair: pair,
		reserves: map[string]decimal.Decimal{
			pair.Token0: decimal.Zero,
			pair.Token1: decimal.Zero,
		},
		feeRateBps:  decimal.NewFromInt(feeBps),
		totalShares: decimal.Zero,
		feeAccrued:  decimal.Zero,
	}
	identity := deriveIdentity(pair)
	p.identity.Store(&identity)
	return p
}

// deriveIdentity produces a deterministic 0x-hex address for the pair,
// keccak-derived the same way on every run so risk tables can key on it.
func deriveIdentity(pair domain.Pair) string {
	digest := crypto.Keccak256([]byte(pair.String()))
	return hexutil.Encode(digest[len(digest)-20:])
}

// Pair returns the canonical pair this pool serves.
func (p *Pool) Pair() domain.Pair { return p.pair }

// PairKey returns the canonical pair key string.
func (p *Pool) PairKey() string { return p.pair.String() }

// Identity returns the pool's address-like identity used by the risk gate.
func (p *Pool) Identity() string { return *p.identity.Load() }

// SetIdentity overrides the derived identity. Exists for adversarial
// scenarios where a pool is revealed as a fork deployment, possibly
// mid-trading.
func (p *Pool) SetIdentity(identity string) { p.identity.Store(&identity) }

// Reserve returns the reserve of one token (zero for unknown tokens).
func (p *Pool) Reserve(token string) decimal.Decimal { return p.reserves[token] }

// TotalShares returns the LP share supply.
func (p *Pool) TotalShares() decimal.Decimal { return p.totalShares }

// FeeAccrued returns cumulative collected fees, denominated in the
// input-token stream that generated them. Informational only.
func (p *Pool) FeeAccrued() decimal.Decimal { return p.feeAccrued }

// FeeRateBps returns the pool fee in basis points.
func (p *Pool) FeeRateBps() decimal.Decimal { return p.feeRateBps }

// K returns the current constant-product value reserve0*reserve1.
func (p *Pool) K() decimal.Decimal {
	return p.reserves[p.pair.Token0].Mul(p.reserves[p.pair.Token1])
}

// State snapshots the pool for event records.
func (p *Pool) State() domain.PoolState {
	return domain.PoolState{
		PairKey:     p.PairKey(),
		Identity:    p.Identity(),
		Reserve0:    p.reserves[p.pair.Token0].String(),
		Reserve1:    p.reserves[p.pair.Token1].String(),
		TotalShares: p.totalShares.String(),
		FeeAccrued:  p.feeAccrued.String(),
	}
}

// Quote prices a swap without mutating the pool:
//
//	amountInEff = amountIn * (1 - fee)
//	amountOut   = amountInEff * reserveOut / (reserveIn + amountInEff)
//
// The division truncates toward zero at quotePrecision places.
func (p *Pool) Quote(amountIn decimal.Decimal, tokenIn string) (decimal.Decimal, error) {
	out, _, err := p.quote(amountIn, tokenIn)
	return out, err
}

func (p *Pool) quote(amountIn decimal.Decimal, tokenIn string) (amountOut, fee decimal.Decimal, err error) {
	if amountIn.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInvalidInput,
			"swap amount must be positive, got %s", amountIn)
	}
	if !p.pair.Contains(tokenIn) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInvalidInput,
			"token %s is not in pair %s", tokenIn, p.PairKey())
	}

	tokenOut := p.pair.Other(tokenIn)
	reserveIn := p.reserves[tokenIn]
	reserveOut := p.reserves[tokenOut]
	if reserveIn.LessThanOrEqual(decimal.Zero) || reserveOut.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrPoolUninitialized,
			"pool %s has no liquidity", p.PairKey())
	}

	feeMultiplier := bpsDenominator.Sub(p.feeRateBps).Div(bpsDenominator)
	amountInEff := amountIn.Mul(feeMultiplier)
	amountOut, _ = amountInEff.Mul(reserveOut).QuoRem(reserveIn.Add(amountInEff), quotePrecision)
	return amountOut, amountIn.Sub(amountInEff), nil
}

// Apply executes a swap against the reserves and returns the output
// amount together with the fee retained by the pool. Post-condition:
// the constant product never decreases; a violation is reported as
// ErrReserveExhausted and leaves the pool untouched.
func (p *Pool) Apply(amountIn decimal.Decimal, tokenIn string) (amountOut, fee decimal.Decimal, err error) {
	amountOut, fee, err = p.quote(amountIn, tokenIn)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	tokenOut := p.pair.Other(tokenIn)
	reserveOut := p.reserves[tokenOut]
	// The curve guarantees amountOut < reserveOut algebraically; this
	// guards against arithmetic drift only.
	if amountOut.GreaterThanOrEqual(reserveOut) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrReserveExhausted,
			"pool %s: output %s would exhaust reserve %s of %s",
			p.PairKey(), amountOut, reserveOut, tokenOut)
	}

	kBefore := p.K()
	newReserveIn := p.reserves[tokenIn].Add(amountIn)
	newReserveOut := reserveOut.Sub(amountOut)
	kAfter := newReserveIn.Mul(newReserveOut)
	// The truncated quote makes this hold exactly, including at zero fee.
	if kAfter.LessThan(kBefore) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrReserveExhausted,
			"pool %s: constant product decreased from %s to %s", p.PairKey(), kBefore, kAfter)
	}

	p.reserves[tokenIn] = newReserveIn
	p.reserves[tokenOut] = newReserveOut
	p.feeAccrued = p.feeAccrued.Add(fee)
	return amountOut, fee, nil
}

// Mint deposits liquidity and issues LP shares.
//
// The first deposit seeds the reserves and issues sqrt(amount0*amount1)
// shares. Follow-up deposits must match the current reserve ratio
// within 1% and receive shares proportional to the smaller side.
// amount0/amount1 follow the pair's canonical token order.
func (p *Pool) Mint(amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	if amount0.LessThanOrEqual(decimal.Zero) || amount1.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput,
			"deposit amounts must be positive, got %s and %s", amount0, amount1)
	}

	reserve0 := p.reserves[p.pair.Token0]
	reserve1 := p.reserves[p.pair.Token1]

	var shares decimal.Decimal
	if p.totalShares.IsZero() {
		// A drained pool re-seeds at the deposit ratio.
		shares = decimalSqrt(amount0.Mul(amount1))
		p.reserves[p.pair.Token0] = amount0
		p.reserves[p.pair.Token1] = amount1
		p.totalShares = shares
		return shares, nil
	}

	depositRatio := amount0.Div(amount1)
	reserveRatio := reserve0.Div(reserve1)
	deviation := depositRatio.Sub(reserveRatio).Abs().Div(reserveRatio)
	if deviation.GreaterThan(ratioTolerance) {
		return decimal.Zero, errors.Wrapf(domain.ErrImbalancedDeposit,
			"deposit ratio %s deviates %s%% from pool ratio %s",
			depositRatio, deviation.Mul(decimal.NewFromInt(100)).Round(4), reserveRatio)
	}

	share0 := amount0.Div(reserve0)
	share1 := amount1.Div(reserve1)
	minShare := share0
	if share1.LessThan(minShare) {
		minShare = share1
	}
	shares = minShare.Mul(p.totalShares)

	p.reserves[p.pair.Token0] = reserve0.Add(amount0)
	p.reserves[p.pair.Token1] = reserve1.Add(amount1)
	p.totalShares = p.totalShares.Add(shares)
	return shares, nil
}

// Burn redeems shareAmount LP shares for a proportional slice of both
// reserves. Burning the entire supply returns exactly the remaining
// reserves so a drained pool holds no dust.
func (p *Pool) Burn(shareAmount decimal.Decimal) (amount0, amount1 decimal.Decimal, err error) {
	if shareAmount.LessThanOrEqual(decimal.Zero) || shareAmount.GreaterThan(p.totalShares) {
		return decimal.Zero, decimal.Zero, errors.Wrapf(domain.ErrInsufficientShares,
			"burn of %s shares outside supply %s", shareAmount, p.totalShares)
	}

	reserve0 := p.reserves[p.pair.Token0]
	reserve1 := p.reserves[p.pair.Token1]

	if shareAmount.Equal(p.totalShares) {
		amount0, amount1 = reserve0, reserve1
	} else {
		fraction := shareAmount.Div(p.totalShares)
		amount0 = reserve0.Mul(fraction)
		amount1 = reserve1.Mul(fraction)
	}

	p.reserves[p.pair.Token0] = reserve0.Sub(amount0)
	p.reserves[p.pair.Token1] = reserve1.Sub(amount1)
	p.totalShares = p.totalShares.Sub(shareAmount)
	return amount0, amount1, nil
}

// decimalSqrt computes the square root of d, seeding from float64 and
// refining with Newton iterations so share issuance stays stable in
// decimal space.
func decimalSqrt(d decimal.Decimal) decimal.Decimal {
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	f, _ := d.Float64()
	guess := decimal.NewFromFloat(math.Sqrt(f))
	if guess.IsZero() {
		return decimal.Zero
	}
	two := decimal.NewFromInt(2)
	for i := 0; i < 6; i++ {
		guess = guess.Add(d.Div(guess)).Div(two)
	}
	return guess
}
