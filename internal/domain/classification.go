package domain

import "github.com/shopspring/decimal"

// ClassificationKind is the risk verdict for a pool identity.
type ClassificationKind string

const (
	// ClassificationGenuine is an identity positively known to belong
	// to an original protocol deployment.
	ClassificationGenuine ClassificationKind = "genuine"
	// ClassificationFork is an identity matching a known fork/clone.
	ClassificationFork ClassificationKind = "fork"
	// ClassificationUnknown is the conservative default for anything
	// the backing table does not cover, including a stale or empty table.
	ClassificationUnknown ClassificationKind = "unknown"
)

// Classification carries the verdict plus the data callers need for policy.
type Classification struct {
	Kind ClassificationKind
	// OriginalProtocol names the protocol a fork was cloned from.
	// Empty unless Kind is ClassificationFork.
	OriginalProtocol string
	// RiskScore in [0,1]. Zero only for Genuine; Unknown always carries
	// a nonzero score so callers can apply conservative policy.
	RiskScore decimal.Decimal
}

func (c Classification) String() string {
	if c.Kind == ClassificationFork && c.OriginalProtocol != "" {
		return string(c.Kind) + " of " + c.OriginalProtocol
	}
	return string(c.Kind)
}
