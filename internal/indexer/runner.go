// Package indexer polls vault logs and feeds decoded events to the state
// store.
package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"vaultPricer/internal/dex"
	"vaultPricer/internal/model"
)

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Vault        common.Address
	BatchSize    uint64
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// LogSource is the slice of the chain client the indexer reads from.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// EventSink receives decoded events in block order.
type EventSink interface {
	SyncedTo() (uint64, bool)
	ApplyEvents(events []model.VaultEvent, syncedTo uint64) error
}

// ResyncFunc rebuilds the sink from a full on-chain read at block.
type ResyncFunc func(ctx context.Context, block uint64) error

// Runner streams vault logs from the chain into the state store.
type Runner struct {
	cfg     RunConfig
	chain   LogSource
	sink    EventSink
	resync  ResyncFunc
	decoder *dex.VaultDecoder
	logger  *zap.Logger
	chainID uint64
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient LogSource, sink EventSink, resync ResyncFunc, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 12 * time.Second
	}
	decoder, err := dex.NewVaultDecoder()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:     cfg,
		chain:   chainClient,
		sink:    sink,
		resync:  resync,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Run polls until ctx ends. A failed poll is logged and retried on the
// next tick.
func (r *Runner) Run(ctx context.Context) error {
	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	r.chainID = chainID.Uint64()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := r.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll brings the sink up to the chain head. Before the first sync, or when
// a log in a range cannot be decoded, the sink is rebuilt from a full read
// instead of replayed.
func (r *Runner) Poll(ctx context.Context) error {
	head, err := r.latestWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	syncedTo, ok := r.sink.SyncedTo()
	if !ok {
		r.logger.Info("initial sync", zap.Uint64("block", head))
		return r.resync(ctx, head)
	}
	if head <= syncedTo {
		return nil
	}

	ranges, err := SplitRange(syncedTo+1, head, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		events, err := r.decode(logs)
		if err != nil {
			r.logger.Warn("undecodable vault log, resyncing", zap.Uint64("block", blockRange.To), zap.Error(err))
			if err := r.resync(ctx, blockRange.To); err != nil {
				return err
			}
			continue
		}
		if err := r.sink.ApplyEvents(events, blockRange.To); err != nil {
			return fmt.Errorf("apply events: %w", err)
		}
		r.logger.Debug("batch complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}
	return nil
}

func (r *Runner) decode(logs []types.Log) ([]model.VaultEvent, error) {
	seen := make(map[string]struct{}, len(logs))
	events := make([]model.VaultEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed || isDuplicate(seen, log) {
			continue
		}
		record := buildLogRecord(r.chainID, log)
		if !r.decoder.CanDecode(record.Topic0()) {
			continue
		}
		ev, err := r.decoder.Decode(record)
		if err != nil {
			return nil, fmt.Errorf("decode log %s:%d: %w", record.TxHash, record.LogIndex, err)
		}
		events = append(events, *ev)
	}
	return events, nil
}

func (r *Runner) latestWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = r.chain.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.Vault}, r.decoder.Topics())
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func isDuplicate(seen map[string]struct{}, log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := seen[id]; ok {
		return true
	}
	seen[id] = struct{}{}
	return false
}
