package pool

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/forkguard/dexsim/internal/domain"
)

// Registry owns the mapping from canonical pair key to its pool.
// Pools are created lazily on the first liquidity deposit and never
// deleted; a pool with zero shares is simply inactive.
type Registry struct {
	mu     sync.RWMutex
	pools  map[string]*Pool
	feeBps int64
}

// NewRegistry creates a registry issuing pools with the given default fee.
func NewRegistry(feeBps int64) *Registry {
	if feeBps < 0 {
		feeBps = DefaultFeeBps
	}
	return &Registry{
		pools:  make(map[string]*Pool),
		feeBps: feeBps,
	}
}

// GetOrCreate resolves the pool for the pair, creating an empty one on
// first call. Idempotent.
func (r *Registry) GetOrCreate(tokenA, tokenB string) (*Pool, error) {
	pair, err := domain.NewPair(tokenA, tokenB)
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, err.Error())
	}

	key := pair.String()

	r.mu.RLock()
	p, ok := r.pools[key]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[key]; ok {
		return p, nil
	}
	p = New(pair, r.feeBps)
	r.pools[key] = p
	return p, nil
}

// Get resolves the pool for the pair or fails with ErrPoolNotFound.
func (r *Registry) Get(tokenA, tokenB string) (*Pool, error) {
	pair, err := domain.NewPair(tokenA, tokenB)
	if err != nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, err.Error())
	}
	return r.GetByKey(pair.String())
}

// GetByKey resolves a pool by its canonical pair key.
func (r *Registry) GetByKey(pairKey string) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[pairKey]
	if !ok {
		return nil, errors.Wrapf(domain.ErrPoolNotFound, "no pool for pair %s", pairKey)
	}
	return p, nil
}

// All returns every registered pool, for reporting and audits.
func (r *Registry) All() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pools := make([]*Pool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	return pools
}
