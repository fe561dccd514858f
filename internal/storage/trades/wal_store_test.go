package trades

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkguard/dexsim/internal/domain"
)

func TestWALStore_AppendAndReplay(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	swap := domain.NewSwapEvent("swap-1", "alice", "USDC", "ETH",
		decimal.NewFromInt(100), decimal.RequireFromString("0.09"), decimal.RequireFromString("0.3"),
		domain.PoolState{PairKey: "ETH_USDC", Reserve0: "0.91", Reserve1: "1100"})
	liq := domain.NewLiquidityEvent("liq-1", "lp", "ETH_USDC",
		decimal.NewFromInt(1), decimal.NewFromInt(1000),
		decimal.RequireFromString("31.6"), decimal.RequireFromString("31.6"))

	require.NoError(t, store.Append(liq))
	require.NoError(t, store.Append(swap))
	assert.Equal(t, uint64(2), store.CurrentIndex())

	records, err := store.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.EventKindLiquidity, records[0].Kind)
	require.NotNil(t, records[0].Liquidity)
	assert.Equal(t, "lp", records[0].Liquidity.Account)
	assert.Equal(t, "1000", records[0].Liquidity.Amount1)

	assert.Equal(t, domain.EventKindSwap, records[1].Kind)
	require.NotNil(t, records[1].Swap)
	assert.Equal(t, "alice", records[1].Swap.Account)
	assert.Equal(t, "ETH_USDC", records[1].Swap.PoolStateAfter.PairKey)
}

func TestWALStore_EventsAfterSkipsConsumed(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	for i, id := range []string{"a", "b", "c"} {
		event := domain.NewSwapEvent(id, "alice", "USDC", "ETH",
			decimal.NewFromInt(int64(i+1)), decimal.NewFromInt(1), decimal.Zero, domain.PoolState{})
		require.NoError(t, store.Append(event))
	}

	records, err := store.EventsAfter(2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c", records[0].Swap.ID)
}

func TestWALStore_AppendRequiresID(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Append(domain.SwapEvent{})
	assert.Error(t, err)
}
