// Package state keeps pool state as immutable per-block snapshots fed by
// vault events, with a block-pinned cache for pools events cannot track.
package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vaultPricer/internal/fetcher"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/model"
)

const (
	DefaultHistoryDepth = 32
	DefaultFallbackTTL  = 30 * time.Second
)

// Fetcher reads full pool state at a block.
type Fetcher interface {
	Fetch(ctx context.Context, pools []model.PoolMetadata, block uint64) (fetcher.Batch, error)
}

// DisabledList reports pools excluded from event sync.
type DisabledList interface {
	IsDisabled(address string) bool
}

// Options tunes a Store. Zero values take defaults.
type Options struct {
	HistoryDepth int
	FallbackTTL  time.Duration
	Disabled     DisabledList
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

type snapshot struct {
	block uint64
	pools map[string]*model.PoolState
}

// history is replaced wholesale on every write.
type history struct {
	snapshots []*snapshot
	syncedTo  uint64
}

// Store is the pool state cache. Readers never lock: they load the current
// history and read immutable snapshots.
type Store struct {
	fetcher  Fetcher
	depth    int
	disabled DisabledList
	logger   *zap.Logger
	metrics  *metrics.Metrics

	writeMu  sync.Mutex
	current  atomic.Pointer[history]
	fallback *fallbackCache
}

func New(f Fetcher, opts Options) *Store {
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = DefaultHistoryDepth
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = DefaultFallbackTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		fetcher:  f,
		depth:    opts.HistoryDepth,
		disabled: opts.Disabled,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		fallback: &fallbackCache{ttl: opts.FallbackTTL, nowFn: opts.Now},
	}
}

// SyncedTo returns the block the event-synced state is current at, and
// false before the first Sync.
func (s *Store) SyncedTo() (uint64, bool) {
	h := s.current.Load()
	if h == nil {
		return 0, false
	}
	return h.syncedTo, true
}

// Sync rebuilds event-synced state from a full read at block and makes it
// the only snapshot. Pools that fail to decode are left out and served
// through the fallback path.
func (s *Store) Sync(ctx context.Context, pools []model.PoolMetadata, block uint64) error {
	var eligible []model.PoolMetadata
	for _, p := range pools {
		if s.eventSynced(p) {
			eligible = append(eligible, p)
		}
	}
	batch, err := s.fetcher.Fetch(ctx, eligible, block)
	if err != nil {
		return err
	}
	for addr, err := range batch.Errors {
		s.logger.Debug("pool left out of sync", zap.String("pool", addr), zap.Error(err))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.current.Store(&history{
		snapshots: []*snapshot{{block: block, pools: batch.States}},
		syncedTo:  block,
	})
	s.metrics.SnapshotBlock.Set(float64(block))
	s.logger.Info("state synced", zap.Uint64("block", block), zap.Int("pools", len(batch.States)))
	return nil
}

// ApplyEvents replays events up to and including syncedTo on top of the
// latest snapshot, one new snapshot per block that touched a tracked pool.
// Events at or below the current sync point are skipped so overlapping
// ranges are harmless. A pool whose event fails to apply is dropped and
// later refetched.
func (s *Store) ApplyEvents(events []model.VaultEvent, syncedTo uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.current.Load()
	if prev == nil {
		return fmt.Errorf("apply events before initial sync")
	}
	if syncedTo < prev.syncedTo {
		return fmt.Errorf("apply events to block %d behind sync point %d", syncedTo, prev.syncedTo)
	}

	ordered := make([]model.VaultEvent, 0, len(events))
	for _, ev := range events {
		if _, known := eventHandlers[ev.EventName]; !known {
			continue
		}
		if ev.BlockNumber > prev.syncedTo && ev.BlockNumber <= syncedTo {
			ordered = append(ordered, ev)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	snaps := append([]*snapshot(nil), prev.snapshots...)
	pools := snaps[len(snaps)-1].pools
	var (
		working map[string]*model.PoolState
		block   uint64
	)
	flush := func() {
		if working != nil {
			snaps = append(snaps, &snapshot{block: block, pools: working})
			pools = working
			working = nil
		}
	}
	for _, ev := range ordered {
		if ev.BlockNumber != block {
			flush()
			block = ev.BlockNumber
		}
		st, ok := pools[ev.PoolAddress]
		if working != nil {
			st, ok = working[ev.PoolAddress]
		}
		if !ok || st == nil {
			continue
		}
		next, err := ApplyEvent(st, ev)
		if working == nil {
			working = make(map[string]*model.PoolState, len(pools))
			for addr, p := range pools {
				working[addr] = p
			}
		}
		if err != nil {
			s.logger.Warn("drop pool after failed event", zap.String("pool", ev.PoolAddress), zap.Uint64("block", ev.BlockNumber), zap.Error(err))
			delete(working, ev.PoolAddress)
			continue
		}
		working[ev.PoolAddress] = next
		s.metrics.EventsApplied.WithLabelValues(ev.EventName).Inc()
	}
	flush()

	if len(snaps) > s.depth {
		snaps = snaps[len(snaps)-s.depth:]
	}
	s.current.Store(&history{snapshots: snaps, syncedTo: syncedTo})
	s.metrics.SnapshotBlock.Set(float64(syncedTo))
	return nil
}

// StateAt returns the event-synced state of pool as of block. It misses when
// block is past the sync point or older than the retained history.
func (s *Store) StateAt(pool string, block uint64) (*model.PoolState, bool) {
	h := s.current.Load()
	if h == nil || block > h.syncedTo {
		return nil, false
	}
	i := sort.Search(len(h.snapshots), func(i int) bool { return h.snapshots[i].block > block }) - 1
	if i < 0 {
		return nil, false
	}
	st, ok := h.snapshots[i].pools[pool]
	return st, ok && st != nil
}

// Resolve returns every pool's state at block. Event-synced pools come from
// the snapshots, the rest from the block-pinned cache; whatever neither
// holds is read in one batch and merged into the cache. Per-pool failures
// are returned in the error map.
func (s *Store) Resolve(ctx context.Context, pools []model.PoolMetadata, block uint64) (map[string]*model.PoolState, map[string]error, error) {
	states := make(map[string]*model.PoolState, len(pools))
	var missing []model.PoolMetadata
	seen := make(map[string]bool, len(pools))
	for _, meta := range pools {
		if seen[meta.Address] {
			continue
		}
		seen[meta.Address] = true
		if s.eventSynced(meta) {
			if st, ok := s.StateAt(meta.Address, block); ok {
				states[meta.Address] = st
				s.metrics.StateLookups.WithLabelValues("event").Inc()
				continue
			}
		}
		st, reset := s.fallback.get(meta.Address, block)
		if reset {
			s.metrics.FallbackResets.Inc()
		}
		if st != nil {
			states[meta.Address] = st
			s.metrics.StateLookups.WithLabelValues("fallback").Inc()
			continue
		}
		missing = append(missing, meta)
	}
	if len(missing) == 0 {
		return states, nil, nil
	}

	s.metrics.StateLookups.WithLabelValues("fetched").Add(float64(len(missing)))
	batch, err := s.fetcher.Fetch(ctx, missing, block)
	if err != nil {
		return nil, nil, err
	}
	s.fallback.merge(block, batch.States)
	for addr, st := range batch.States {
		states[addr] = st
	}
	return states, batch.Errors, nil
}

func (s *Store) eventSynced(meta model.PoolMetadata) bool {
	if !meta.Type.EventSynced() {
		return false
	}
	return s.disabled == nil || !s.disabled.IsDisabled(meta.Address)
}
