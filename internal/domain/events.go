package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind discriminates exchange event types in journals and streams.
type EventKind string

const (
	EventKindSwap      EventKind = "swap"
	EventKindLiquidity EventKind = "liquidity"
)

// Event is implemented by every record the exchange emits at its boundary.
type Event interface {
	EventID() string
	EventKind() EventKind
}

// PoolState is a snapshot of a pool taken right after a commit.
// Amount fields are strings to avoid float precision issues in
// downstream consumers (web/UI, CSV reporters).
type PoolState struct {
	PairKey     string `json:"pair_key"`
	Identity    string `json:"identity"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	TotalShares string `json:"total_shares"`
	FeeAccrued  string `json:"fee_accrued"`
}

// SwapEvent records one executed swap.
type SwapEvent struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"ts"`
	Account        string    `json:"account"`
	TokenIn        string    `json:"token_in"`
	TokenOut       string    `json:"token_out"`
	AmountIn       string    `json:"amount_in"`
	AmountOut      string    `json:"amount_out"`
	FeeCollected   string    `json:"fee_collected"`
	PoolStateAfter PoolState `json:"pool_state_after"`
}

func (e SwapEvent) EventID() string      { return e.ID }
func (e SwapEvent) EventKind() EventKind { return EventKindSwap }

// LiquidityEvent records one liquidity change. SharesDelta is positive
// for mints and negative for burns.
type LiquidityEvent struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"ts"`
	Account          string    `json:"account"`
	PairKey          string    `json:"pair_key"`
	Amount0          string    `json:"amount0"`
	Amount1          string    `json:"amount1"`
	SharesDelta      string    `json:"shares_delta"`
	TotalSharesAfter string    `json:"total_shares_after"`
}

func (e LiquidityEvent) EventID() string      { return e.ID }
func (e LiquidityEvent) EventKind() EventKind { return EventKindLiquidity }

// EventRecord bundles a journaled event with its WAL index.
type EventRecord struct {
	Index     uint64
	Kind      EventKind
	Swap      *SwapEvent
	Liquidity *LiquidityEvent
}

// NewSwapEvent builds a SwapEvent from decimal amounts.
func NewSwapEvent(id, account, tokenIn, tokenOut string, amountIn, amountOut, fee decimal.Decimal, after PoolState) SwapEvent {
	return SwapEvent{
		ID:             id,
		Timestamp:      time.Now().UTC(),
		Account:        account,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn.String(),
		AmountOut:      amountOut.String(),
		FeeCollected:   fee.String(),
		PoolStateAfter: after,
	}
}

// NewLiquidityEvent builds a LiquidityEvent from decimal amounts.
func NewLiquidityEvent(id, account, pairKey string, amount0, amount1, sharesDelta, totalAfter decimal.Decimal) LiquidityEvent {
	return LiquidityEvent{
		ID:               id,
		Timestamp:        time.Now().UTC(),
		Account:          account,
		PairKey:          pairKey,
		Amount0:          amount0.String(),
		Amount1:          amount1.String(),
		SharesDelta:      sharesDelta.String(),
		TotalSharesAfter: totalAfter.String(),
	}
}
