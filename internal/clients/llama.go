// Package clients holds HTTP clients for external collaborators of the
// exchange core.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/forkguard/dexsim/internal/services/riskgate"
)

const (
	// DefaultProtocolsURL is the DeFiLlama protocols endpoint.
	DefaultProtocolsURL = "https://api.llama.fi/protocols"

	requestTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Protocol is one entry of the protocols feed. Only the fields the risk
// table needs are decoded.
type Protocol struct {
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	TVL        float64  `json:"tvl"`
	ForkedFrom []string `json:"forkedFrom"`
}

// ForkFeed fetches recently forked protocols and converts them into a
// risk gate table. The core treats the feed as possibly stale or absent:
// a fetch failure is returned to the caller, who keeps the previous table.
type ForkFeed struct {
	url    string
	minTVL decimal.Decimal
	client *http.Client
	logger *zap.Logger
}

// NewForkFeed creates a feed client. minTVL filters out forks below the
// TVL threshold (the original screen used $1M).
func NewForkFeed(url string, minTVL decimal.Decimal, logger *zap.Logger) *ForkFeed {
	if url == "" {
		url = DefaultProtocolsURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForkFeed{
		url:    url,
		minTVL: minTVL,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

// FetchTable pulls the protocols feed and returns a table of fork
// identity prefixes, retrying transient failures with jittered
// exponential backoff.
func (f *ForkFeed) FetchTable(ctx context.Context) (riskgate.Table, error) {
	bo := &backoff.Backoff{
		Min:    2 * time.Second,
		Max:    10 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		table, err := f.fetchOnce(ctx)
		if err == nil {
			return table, nil
		}
		lastErr = err
		f.logger.Warn("fork feed fetch failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.Duration()):
		}
	}
	return nil, errors.Wrap(lastErr, "fork feed exhausted retries")
}

func (f *ForkFeed) fetchOnce(ctx context.Context) (riskgate.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build protocols request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request protocols feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("protocols feed returned status %d", resp.StatusCode)
	}

	var protocols []Protocol
	if err := json.NewDecoder(resp.Body).Decode(&protocols); err != nil {
		return nil, errors.Wrap(err, "decode protocols feed")
	}

	table := make(riskgate.Table)
	for _, p := range protocols {
		if len(p.ForkedFrom) == 0 || p.Address == "" {
			continue
		}
		tvl := decimal.NewFromFloat(p.TVL)
		if tvl.LessThan(f.minTVL) {
			continue
		}
		table[strings.ToLower(p.Address)] = riskgate.ForkRecord{
			Name:       p.Name,
			ForkedFrom: strings.Join(p.ForkedFrom, ","),
			TVL:        tvl,
		}
	}
	return table, nil
}

// RunRefresher re-pulls the fork table on the interval and swaps it into
// the gate, keeping the previous table on failure. Blocks until ctx is
// cancelled. Refresh runs out-of-band, never on a swap path.
func (f *ForkFeed) RunRefresher(ctx context.Context, interval time.Duration, gate *riskgate.Gate) error {
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		table, err := f.FetchTable(ctx)
		if err != nil {
			f.logger.Warn("keeping previous fork table", zap.Error(err))
		} else {
			gate.UpdateTable(table)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
