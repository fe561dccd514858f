package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkguard/dexsim/internal/domain"
)

func TestLedger_CreditDebit(t *testing.T) {
	l := New()

	require.NoError(t, l.Credit("alice", "USDC", decimal.NewFromInt(1000)))
	assert.True(t, l.Balance("alice", "USDC").Equal(decimal.NewFromInt(1000)))

	require.NoError(t, l.Debit("alice", "USDC", decimal.NewFromInt(400)))
	assert.True(t, l.Balance("alice", "USDC").Equal(decimal.NewFromInt(600)))
}

func TestLedger_DebitOverdraftFails(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit("alice", "USDC", decimal.NewFromInt(100)))

	err := l.Debit("alice", "USDC", decimal.NewFromInt(101))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	// no clamping: balance untouched
	assert.True(t, l.Balance("alice", "USDC").Equal(decimal.NewFromInt(100)))
}

func TestLedger_DebitUnknownAccountFails(t *testing.T) {
	l := New()

	err := l.Debit("ghost", "USDC", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)
	assert.True(t, l.Balance("ghost", "USDC").IsZero())
}

func TestLedger_CheckSufficient(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit("alice", "ETH", decimal.NewFromInt(2)))

	assert.True(t, l.CheckSufficient("alice", "ETH", decimal.NewFromInt(2)))
	assert.False(t, l.CheckSufficient("alice", "ETH", decimal.NewFromFloat(2.1)))
	assert.False(t, l.CheckSufficient("bob", "ETH", decimal.NewFromInt(1)))
	assert.True(t, l.CheckSufficient("bob", "ETH", decimal.Zero))
}

func TestLedger_ShareMintBurn(t *testing.T) {
	l := New()

	require.NoError(t, l.RecordShareMint("alice", "ETH_USDC", decimal.NewFromInt(100)))
	require.NoError(t, l.RecordShareMint("bob", "ETH_USDC", decimal.NewFromInt(50)))
	assert.True(t, l.TotalShares("ETH_USDC").Equal(decimal.NewFromInt(150)))

	require.NoError(t, l.RecordShareBurn("alice", "ETH_USDC", decimal.NewFromInt(40)))
	assert.True(t, l.Shares("alice", "ETH_USDC").Equal(decimal.NewFromInt(60)))
	assert.True(t, l.TotalShares("ETH_USDC").Equal(decimal.NewFromInt(110)))
}

func TestLedger_ShareBurnExceedingHoldingsFails(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordShareMint("alice", "ETH_USDC", decimal.NewFromInt(10)))

	err := l.RecordShareBurn("alice", "ETH_USDC", decimal.NewFromInt(11))
	assert.ErrorIs(t, err, domain.ErrInsufficientShares)
	assert.True(t, l.Shares("alice", "ETH_USDC").Equal(decimal.NewFromInt(10)))
}

func TestLedger_InvalidAmounts(t *testing.T) {
	l := New()

	assert.ErrorIs(t, l.Credit("alice", "USDC", decimal.NewFromInt(-1)), domain.ErrInvalidInput)
	assert.ErrorIs(t, l.Debit("alice", "USDC", decimal.NewFromInt(-1)), domain.ErrInvalidInput)
	assert.ErrorIs(t, l.RecordShareMint("alice", "ETH_USDC", decimal.Zero), domain.ErrInvalidInput)
	assert.ErrorIs(t, l.RecordShareBurn("alice", "ETH_USDC", decimal.Zero), domain.ErrInvalidInput)
}
