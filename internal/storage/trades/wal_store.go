// Package trades persists exchange boundary events in a WAL so
// reporting collaborators can replay swaps and liquidity changes.
package trades

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/forkguard/dexsim/internal/domain"
)

const (
	DefaultDir   = "./wal/trades"
	segmentLimit = 1000
	maxSegments  = 20

	swapKeyPrefix      = "swap_"
	liquidityKeyPrefix = "liquidity_"
)

// WALStore is a gowal-backed journal of swap and liquidity events.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed trade journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trade_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append journals one exchange event.
func (s *WALStore) Append(event domain.Event) error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}
	if event.EventID() == "" {
		return fmt.Errorf("event id is required")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal trade event")
	}

	var key string
	switch event.EventKind() {
	case domain.EventKindSwap:
		key = swapKeyPrefix + event.EventID()
	case domain.EventKindLiquidity:
		key = liquidityKeyPrefix + event.EventID()
	default:
		return fmt.Errorf("unknown event kind: %s", event.EventKind())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all events journaled after the provided WAL index.
func (s *WALStore) EventsAfter(index uint64) ([]domain.EventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("trade store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.EventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(key, swapKeyPrefix):
			var event domain.SwapEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return nil, errors.Wrap(err, "decode swap event")
			}
			records = append(records, domain.EventRecord{
				Index: idx,
				Kind:  domain.EventKindSwap,
				Swap:  &event,
			})
		case strings.HasPrefix(key, liquidityKeyPrefix):
			var event domain.LiquidityEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return nil, errors.Wrap(err, "decode liquidity event")
			}
			records = append(records, domain.EventRecord{
				Index:     idx,
				Kind:      domain.EventKindLiquidity,
				Liquidity: &event,
			})
		}
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("trade store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
