package exchange

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forkguard/dexsim/internal/domain"
	"github.com/forkguard/dexsim/internal/services/ledger"
	"github.com/forkguard/dexsim/internal/services/pool"
	"github.com/forkguard/dexsim/internal/services/riskgate"
)

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingSink) Append(event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func newTestExchange(t *testing.T, table riskgate.Table) (*Exchange, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	gate := riskgate.New(table, riskgate.DefaultPolicy(), nil)
	ex, err := New(pool.NewRegistry(30), ledger.New(), gate, sink, nil, zap.NewNop())
	require.NoError(t, err)
	return ex, sink
}

func fund(t *testing.T, ex *Exchange, account string, amounts map[string]string) {
	t.Helper()
	for token, amount := range amounts {
		require.NoError(t, ex.Ledger().Credit(account, token, decimal.RequireFromString(amount)))
	}
}

func TestExchange_SafeSwapHappyPath(t *testing.T) {
	ex, sink := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "1", "USDC": "1000"})
	fund(t, ex, "alice", map[string]string{"USDC": "500"})

	_, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)

	out, err := ex.SafeSwap("alice", "USDC", "ETH", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, out.GreaterThan(decimal.Zero))

	assert.True(t, ex.Ledger().Balance("alice", "USDC").Equal(decimal.NewFromInt(400)))
	assert.True(t, ex.Ledger().Balance("alice", "ETH").Equal(out))

	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	assert.True(t, p.Reserve("USDC").Equal(decimal.NewFromInt(1100)))
	assert.True(t, p.Reserve("ETH").Equal(decimal.NewFromInt(1).Sub(out)))

	events := sink.all()
	require.Len(t, events, 2) // liquidity + swap
	swap, ok := events[1].(domain.SwapEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", swap.Account)
	assert.Equal(t, "USDC", swap.TokenIn)
	assert.Equal(t, "ETH", swap.TokenOut)
	assert.Equal(t, "0.3", swap.FeeCollected)
	assert.Equal(t, "1100", swap.PoolStateAfter.Reserve1)
}

func TestExchange_SafeSwapPoolNotFound(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "alice", map[string]string{"USDC": "500"})

	_, err := ex.SafeSwap("alice", "USDC", "ETH", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestExchange_SafeSwapInsufficientBalance(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "1", "USDC": "1000"})
	fund(t, ex, "alice", map[string]string{"USDC": "50"})
	_, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)

	_, err = ex.SafeSwap("alice", "USDC", "ETH", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// pool untouched
	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	assert.True(t, p.Reserve("USDC").Equal(decimal.NewFromInt(1000)))
}

func TestExchange_SafeSwapBlockedForkLeavesStateUnchanged(t *testing.T) {
	ex, _ := newTestExchange(t, riskgate.Table{
		"0x795065": {Name: "SushiClone", ForkedFrom: "Uniswap"},
	})
	fund(t, ex, "lp", map[string]string{"ETH": "1", "USDC": "1000"})
	fund(t, ex, "alice", map[string]string{"USDC": "500"})
	_, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)

	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	p.SetIdentity("0x795065c11d808f3b3f1c1b207fb51c43e9e0d6ab")

	_, err = ex.SafeSwap("alice", "USDC", "ETH", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrSecurityBlocked)
	assert.NotErrorIs(t, err, domain.ErrInsufficientBalance,
		"security blocks must be distinguishable from balance errors")

	assert.True(t, p.Reserve("USDC").Equal(decimal.NewFromInt(1000)))
	assert.True(t, p.Reserve("ETH").Equal(decimal.NewFromInt(1)))
	assert.True(t, ex.Ledger().Balance("alice", "USDC").Equal(decimal.NewFromInt(500)))
	assert.True(t, ex.Ledger().Balance("alice", "ETH").IsZero())
}

func TestExchange_SafeSwapInvalidAmount(t *testing.T) {
	ex, _ := newTestExchange(t, nil)

	_, err := ex.SafeSwap("alice", "USDC", "ETH", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExchange_ProvideLiquidityChecksBothBalances(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"USDC": "1000"}) // no ETH

	_, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestExchange_ProvideLiquidityImbalancedPropagates(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "10", "USDC": "10000"})
	_, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)

	_, err = ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(2))
	assert.ErrorIs(t, err, domain.ErrImbalancedDeposit)
}

func TestExchange_RemoveLiquidity(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "1", "USDC": "1000"})

	shares, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, ex.Ledger().Balance("lp", "USDC").IsZero())
	assert.True(t, ex.Ledger().Balance("lp", "ETH").IsZero())

	amount0, amount1, err := ex.RemoveLiquidity("lp", "ETH_USDC", shares)
	require.NoError(t, err)

	// full burn returns the exact deposit, canonical order: ETH first
	assert.True(t, amount0.Equal(decimal.NewFromInt(1)))
	assert.True(t, amount1.Equal(decimal.NewFromInt(1000)))
	assert.True(t, ex.Ledger().Balance("lp", "ETH").Equal(decimal.NewFromInt(1)))
	assert.True(t, ex.Ledger().Balance("lp", "USDC").Equal(decimal.NewFromInt(1000)))
}

func TestExchange_RemoveLiquidityInsufficientShares(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "1", "USDC": "1000"})
	fund(t, ex, "bob", map[string]string{"ETH": "1"})

	shares, err := ex.ProvideLiquidity("lp", "USDC", "ETH", decimal.NewFromInt(1000), decimal.NewFromInt(1))
	require.NoError(t, err)

	// bob holds no shares even though the pool has supply
	_, _, err = ex.RemoveLiquidity("bob", "ETH_USDC", shares)
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
}

func TestExchange_ShareConservationAcrossAccounts(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "alice", map[string]string{"ETH": "10", "USDC": "10000"})
	fund(t, ex, "bob", map[string]string{"ETH": "10", "USDC": "10000"})

	_, err := ex.ProvideLiquidity("alice", "ETH", "USDC", decimal.NewFromInt(5), decimal.NewFromInt(5000))
	require.NoError(t, err)
	bobShares, err := ex.ProvideLiquidity("bob", "ETH", "USDC", decimal.NewFromInt(2), decimal.NewFromInt(2000))
	require.NoError(t, err)
	_, _, err = ex.RemoveLiquidity("bob", "ETH_USDC", bobShares.Div(decimal.NewFromInt(2)))
	require.NoError(t, err)

	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	diff := ex.Ledger().TotalShares("ETH_USDC").Sub(p.TotalShares()).Abs()
	assert.True(t, diff.LessThan(decimal.New(1, -10)),
		"ledger shares %s diverged from pool supply %s",
		ex.Ledger().TotalShares("ETH_USDC"), p.TotalShares())
}

func TestExchange_NoNegativeStateAfterMixedSequence(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "100", "USDC": "100000"})
	fund(t, ex, "alice", map[string]string{"ETH": "5", "USDC": "5000"})

	_, err := ex.ProvideLiquidity("lp", "ETH", "USDC", decimal.NewFromInt(50), decimal.NewFromInt(50000))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			_, err = ex.SafeSwap("alice", "USDC", "ETH", decimal.NewFromInt(100))
		} else {
			_, err = ex.SafeSwap("alice", "ETH", "USDC", decimal.RequireFromString("0.05"))
		}
		require.NoError(t, err)
	}

	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	assert.True(t, p.Reserve("ETH").GreaterThan(decimal.Zero))
	assert.True(t, p.Reserve("USDC").GreaterThan(decimal.Zero))
	for _, token := range []string{"ETH", "USDC"} {
		assert.True(t, ex.Ledger().Balance("alice", token).GreaterThanOrEqual(decimal.Zero))
		assert.True(t, ex.Ledger().Balance("lp", token).GreaterThanOrEqual(decimal.Zero))
	}
}

func TestExchange_SameAccountConcurrentSwapsAcrossPools(t *testing.T) {
	// One account racing two swaps on different pools must not spend
	// the same balance twice: the loser has to fail the balance check
	// before any pool mutates, keeping pool gains equal to ledger debits.
	for i := 0; i < 10; i++ {
		ex, _ := newTestExchange(t, nil)
		fund(t, ex, "lp", map[string]string{"AAA": "100", "BBB": "100", "USDC": "20000"})
		fund(t, ex, "trader", map[string]string{"USDC": "100"})

		_, err := ex.ProvideLiquidity("lp", "AAA", "USDC", decimal.NewFromInt(100), decimal.NewFromInt(10000))
		require.NoError(t, err)
		_, err = ex.ProvideLiquidity("lp", "BBB", "USDC", decimal.NewFromInt(100), decimal.NewFromInt(10000))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for j, token := range []string{"AAA", "BBB"} {
			wg.Add(1)
			go func(j int, token string) {
				defer wg.Done()
				_, errs[j] = ex.SafeSwap("trader", "USDC", token, decimal.NewFromInt(80))
			}(j, token)
		}
		wg.Wait()

		// a 100 USDC balance clears exactly one 80 USDC swap
		if errs[0] == nil {
			assert.ErrorIs(t, errs[1], domain.ErrInsufficientBalance)
		} else {
			assert.ErrorIs(t, errs[0], domain.ErrInsufficientBalance)
			require.NoError(t, errs[1])
		}
		assert.True(t, ex.Ledger().Balance("trader", "USDC").Equal(decimal.NewFromInt(20)))

		pa, err := ex.Registry().GetByKey("AAA_USDC")
		require.NoError(t, err)
		pb, err := ex.Registry().GetByKey("BBB_USDC")
		require.NoError(t, err)
		gained := pa.Reserve("USDC").Add(pb.Reserve("USDC")).Sub(decimal.NewFromInt(20000))
		assert.True(t, gained.Equal(decimal.NewFromInt(80)),
			"pools gained %s USDC but only one 80 USDC debit may land", gained)
	}
}

func TestExchange_ConcurrentSwapsKeepInvariants(t *testing.T) {
	ex, _ := newTestExchange(t, nil)
	fund(t, ex, "lp", map[string]string{"ETH": "100", "USDC": "100000"})
	_, err := ex.ProvideLiquidity("lp", "ETH", "USDC", decimal.NewFromInt(100), decimal.NewFromInt(100000))
	require.NoError(t, err)

	const workers = 8
	const swapsPerWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		account := "trader"
		fund(t, ex, account, map[string]string{"USDC": "100000"})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < swapsPerWorker; i++ {
				_, _ = ex.SafeSwap(account, "USDC", "ETH", decimal.NewFromInt(10))
			}
		}()
	}
	wg.Wait()

	p, err := ex.Registry().GetByKey("ETH_USDC")
	require.NoError(t, err)
	assert.True(t, p.Reserve("ETH").GreaterThan(decimal.Zero))
	assert.True(t, p.Reserve("USDC").GreaterThan(decimal.Zero))
	assert.True(t, p.K().GreaterThanOrEqual(decimal.NewFromInt(100*100000)),
		"k must never decrease under concurrent fee-bearing swaps")
	assert.True(t, ex.Ledger().Balance("trader", "ETH").GreaterThan(decimal.Zero))
	assert.True(t, ex.Ledger().Balance("trader", "USDC").GreaterThanOrEqual(decimal.Zero))
}
