// Package fetcher reads full pool state through batched on-chain calls.
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/model"
)

const (
	DefaultChunkSize   = 500
	DefaultConcurrency = 4
)

// Options tunes a Fetcher. Zero values take defaults.
type Options struct {
	ChunkSize   int
	Concurrency int
	// RPS caps chunk submissions per second; zero means unlimited.
	RPS     float64
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Fetcher builds per-type call plans, submits them in chunks and decodes
// the results positionally.
type Fetcher struct {
	reader      chain.BatchReader
	vault       common.Address
	chunkSize   int
	concurrency int
	limiter     *rate.Limiter
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func New(reader chain.BatchReader, vault common.Address, opts Options) *Fetcher {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	return &Fetcher{
		reader:      reader,
		vault:       vault,
		chunkSize:   opts.ChunkSize,
		concurrency: opts.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// Batch is the outcome of one refresh. A pool appears in exactly one of the
// two maps, keyed by address.
type Batch struct {
	States map[string]*model.PoolState
	Errors map[string]error
}

// Fetch reads the state of every pool at block. Per-pool failures land in
// Batch.Errors; only a failed chunk read fails the whole call.
func (f *Fetcher) Fetch(ctx context.Context, pools []model.PoolMetadata, block uint64) (Batch, error) {
	batch := Batch{
		States: make(map[string]*model.PoolState, len(pools)),
		Errors: make(map[string]error),
	}

	plans := make([]poolPlan, 0, len(pools))
	var calls []chain.Call
	for _, meta := range pools {
		plan, err := buildPlan(meta, f.vault)
		if err != nil {
			batch.Errors[meta.Address] = err
			continue
		}
		plans = append(plans, plan)
		calls = append(calls, plan.calls...)
	}
	if len(calls) == 0 {
		return batch, nil
	}

	results, err := f.readChunks(ctx, calls, block)
	if err != nil {
		return Batch{}, &model.UpstreamUnavailableError{Source: "chain", Err: err}
	}

	cur := cursor{results: results}
	for _, plan := range plans {
		state, err := plan.decode(cur.take(len(plan.calls)), block)
		if err != nil {
			batch.Errors[plan.meta.Address] = err
			f.metrics.DecodeErrors.WithLabelValues(string(plan.meta.Type)).Inc()
			f.logger.Debug("drop pool from refresh", zap.String("pool", plan.meta.Address), zap.Error(err))
			continue
		}
		batch.States[plan.meta.Address] = state
	}
	return batch, nil
}

// readChunks submits calls in chunkSize pieces and joins every chunk before
// returning, so results line up with calls.
func (f *Fetcher) readChunks(ctx context.Context, calls []chain.Call, block uint64) ([]chain.Result, error) {
	chunks := (len(calls) + f.chunkSize - 1) / f.chunkSize
	parts := make([][]chain.Result, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := 0; i < chunks; i++ {
		i := i
		start := i * f.chunkSize
		end := start + f.chunkSize
		if end > len(calls) {
			end = len(calls)
		}
		g.Go(func() error {
			if err := f.limiter.Wait(gctx); err != nil {
				return err
			}
			began := time.Now()
			res, err := f.reader.BatchRead(gctx, calls[start:end], block)
			f.metrics.FetchChunkDuration.Observe(time.Since(began).Seconds())
			if err != nil {
				f.metrics.FetchChunks.WithLabelValues("error").Inc()
				return err
			}
			if len(res) != end-start {
				f.metrics.FetchChunks.WithLabelValues("error").Inc()
				return errShortChunk
			}
			f.metrics.FetchChunks.WithLabelValues("ok").Inc()
			parts[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]chain.Result, 0, len(calls))
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}

var errShortChunk = errors.New("batch read returned fewer results than calls")

// cursor hands out consecutive result windows.
type cursor struct {
	results []chain.Result
	pos     int
}

func (c *cursor) take(n int) []chain.Result {
	window := c.results[c.pos : c.pos+n]
	c.pos += n
	return window
}
