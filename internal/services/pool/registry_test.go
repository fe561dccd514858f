package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkguard/dexsim/internal/domain"
)

func TestRegistry_GetOrCreateCanonicalizes(t *testing.T) {
	r := NewRegistry(30)

	a, err := r.GetOrCreate("USDC", "ETH")
	require.NoError(t, err)
	b, err := r.GetOrCreate("ETH", "USDC")
	require.NoError(t, err)

	assert.Same(t, a, b, "pair order must resolve to one pool")
	assert.Equal(t, "ETH_USDC", a.PairKey())
}

func TestRegistry_GetMissingPool(t *testing.T) {
	r := NewRegistry(30)

	_, err := r.Get("ETH", "USDC")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)

	_, err = r.GetByKey("ETH_USDC")
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestRegistry_InvalidPair(t *testing.T) {
	r := NewRegistry(30)

	_, err := r.GetOrCreate("ETH", "ETH")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = r.GetOrCreate("", "USDC")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegistry_All(t *testing.T) {
	r := NewRegistry(30)
	_, err := r.GetOrCreate("ETH", "USDC")
	require.NoError(t, err)
	_, err = r.GetOrCreate("DAI", "ETH")
	require.NoError(t, err)

	assert.Len(t, r.All(), 2)
}
