// Package riskgate classifies pool identities as genuine, forked or
// unknown and decides whether trades against them may proceed.
package riskgate

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forkguard/dexsim/internal/domain"
)

// ForkRecord describes one known fork/clone deployment keyed by an
// identity prefix in the gate's table.
type ForkRecord struct {
	// Name of the forked protocol.
	Name string
	// ForkedFrom names the original protocol it was cloned from.
	ForkedFrom string
	// TVL locked in the fork, used for risk scoring only.
	TVL decimal.Decimal
}

// Table maps lowercase identity prefixes to fork records. The table is
// produced out-of-band (fork feed, static config) and swapped in whole.
type Table map[string]ForkRecord

// Policy decides which classifications block a trade.
type Policy struct {
	// BlockForks blocks every detected fork. Default policy.
	BlockForks bool
	// UnknownRiskThreshold blocks Unknown classifications whose risk
	// score is strictly above the threshold. Zero disables the check
	// (the default: unknowns are allowed).
	UnknownRiskThreshold decimal.Decimal
}

// DefaultPolicy blocks all detected forks and allows unknowns.
func DefaultPolicy() Policy {
	return Policy{BlockForks: true}
}

var (
	forkRiskScore    = decimal.RequireFromString("0.9")
	unknownRiskScore = decimal.RequireFromString("0.5")
)

// Gate classifies pool identities from an in-memory table. Lookups are
// deterministic and never touch I/O, so callers may classify inside a
// trading critical section. Table refreshes swap atomically.
type Gate struct {
	mu      sync.RWMutex
	table   Table
	genuine map[string]struct{}
	policy  Policy
	logger  *zap.Logger
}

// New creates a gate with the given table and policy. A nil or empty
// table is valid: everything classifies as Unknown, never Genuine.
func New(table Table, policy Policy, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		genuine: make(map[string]struct{}),
		policy:  policy,
		logger:  logger,
	}
	g.UpdateTable(table)
	return g
}

// UpdateTable replaces the fork table. Prefixes are normalized to
// lowercase. Called by the feed refresher out-of-band; an empty table
// only widens the Unknown default, it never grants Genuine.
func (g *Gate) UpdateTable(table Table) {
	normalized := make(Table, len(table))
	for prefix, record := range table {
		normalized[strings.ToLower(prefix)] = record
	}

	g.mu.Lock()
	g.table = normalized
	g.mu.Unlock()

	g.logger.Info("risk table updated", zap.Int("fork_prefixes", len(normalized)))
}

// MarkGenuine registers an identity as a known-original deployment.
// Fork prefixes win over the genuine set: an identity matching both is
// still a fork.
func (g *Gate) MarkGenuine(identity string) {
	g.mu.Lock()
	g.genuine[strings.ToLower(identity)] = struct{}{}
	g.mu.Unlock()
}

// Classify resolves the identity against the table. Identities with a
// known fork prefix classify as Fork; registered originals as Genuine.
// Everything else, including any identity while the table is stale or
// empty, classifies as Unknown with a nonzero risk score.
func (g *Gate) Classify(identity string) domain.Classification {
	id := strings.ToLower(identity)

	g.mu.RLock()
	defer g.mu.RUnlock()

	for prefix, record := range g.table {
		if strings.HasPrefix(id, prefix) {
			return domain.Classification{
				Kind:             domain.ClassificationFork,
				OriginalProtocol: record.ForkedFrom,
				RiskScore:        forkRiskScore,
			}
		}
	}

	if _, ok := g.genuine[id]; ok {
		return domain.Classification{Kind: domain.ClassificationGenuine, RiskScore: decimal.Zero}
	}

	return domain.Classification{Kind: domain.ClassificationUnknown, RiskScore: unknownRiskScore}
}

// IsBlocked applies the gate's policy to a classification.
func (g *Gate) IsBlocked(c domain.Classification) bool {
	g.mu.RLock()
	policy := g.policy
	g.mu.RUnlock()

	switch c.Kind {
	case domain.ClassificationFork:
		return policy.BlockForks
	case domain.ClassificationUnknown:
		return policy.UnknownRiskThreshold.GreaterThan(decimal.Zero) &&
			c.RiskScore.GreaterThan(policy.UnknownRiskThreshold)
	default:
		return false
	}
}
