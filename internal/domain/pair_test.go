package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPair_CanonicalOrder(t *testing.T) {
	a, err := NewPair("USDC", "ETH")
	require.NoError(t, err)
	b, err := NewPair("ETH", "USDC")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, "ETH", a.Token0)
	assert.Equal(t, "USDC", a.Token1)
	assert.Equal(t, "ETH_USDC", a.String())
}

func TestNewPair_Invalid(t *testing.T) {
	_, err := NewPair("", "ETH")
	assert.Error(t, err)

	_, err = NewPair("ETH", "ETH")
	assert.Error(t, err)
}

func TestPair_ContainsAndOther(t *testing.T) {
	p, err := NewPair("ETH", "USDC")
	require.NoError(t, err)

	assert.True(t, p.Contains("ETH"))
	assert.True(t, p.Contains("USDC"))
	assert.False(t, p.Contains("BTC"))

	assert.Equal(t, "USDC", p.Other("ETH"))
	assert.Equal(t, "ETH", p.Other("USDC"))
}
