// Package domain defines core data structures shared by the exchange services.
package domain

import "fmt"

// Pair is an unordered token pair in canonical (lexicographic) order,
// so (A,B) and (B,A) resolve to the same pool.
type Pair struct {
	// Token0 first token symbol in canonical order.
	Token0 string
	// Token1 second token symbol in canonical order.
	Token1 string
}

// NewPair canonicalizes two token symbols into a Pair.
func NewPair(tokenA, tokenB string) (Pair, error) {
	if tokenA == "" || tokenB == "" {
		return Pair{}, fmt.Errorf("token symbols must be non-empty, got %q and %q", tokenA, tokenB)
	}
	if tokenA == tokenB {
		return Pair{}, fmt.Errorf("pair requires two distinct tokens, got %q twice", tokenA)
	}
	if tokenA > tokenB {
		tokenA, tokenB = tokenB, tokenA
	}
	return Pair{Token0: tokenA, Token1: tokenB}, nil
}

// String returns the canonical pair key.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Token0, p.Token1)
}

// Contains reports whether token is one of the pair's tokens.
func (p Pair) Contains(token string) bool {
	return token == p.Token0 || token == p.Token1
}

// Other returns the counterpart of token within the pair.
// The result is meaningless if token is not in the pair; callers
// validate with Contains first.
func (p Pair) Other(token string) string {
	if token == p.Token0 {
		return p.Token1
	}
	return p.Token0
}
