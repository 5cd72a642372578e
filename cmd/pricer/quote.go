package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultPricer/internal/aggregate"
	"vaultPricer/internal/config"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/model"
	"vaultPricer/internal/quote"
	"vaultPricer/internal/storage"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	side, err := model.ParseSide(cfg.Side)
	if err != nil {
		return err
	}
	amounts, err := parseAmounts(cfg.Amounts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg.Config, true, logger, metrics.Discard())
	if err != nil {
		return err
	}
	defer a.Close()

	block := cfg.Block
	if block == 0 {
		if block, err = a.chain.LatestBlockNumber(ctx); err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}

	prices, err := a.quotes.GetPrices(ctx, quote.Request{
		TokenIn:  cfg.From,
		TokenOut: cfg.To,
		Amounts:  amounts,
		Side:     side,
		Block:    block,
		Pools:    cfg.Pools,
	})
	if err != nil {
		return err
	}
	logger.Info("quote complete", zap.Uint64("block", block), zap.Int("pools", len(prices)))
	logBestPrice(logger, a, cfg, side, amounts, prices)

	if cfg.Out != "" {
		quotedAt := time.Now().UTC().Format(time.RFC3339Nano)
		records := make([]storage.PriceRecord, 0, len(prices))
		for _, p := range prices {
			records = append(records, storage.PriceRecord{
				Block:      block,
				Side:       side,
				TokenIn:    cfg.From,
				TokenOut:   cfg.To,
				Amounts:    amounts,
				QuotedAt:   quotedAt,
				PoolPrices: p,
			})
		}
		if err := storage.NewJsonlStorage(cfg.Out).PutPrices(records); err != nil {
			return err
		}
	}
	return printJSON(prices)
}

// logBestPrice reports the effective price of the largest amount through
// the best pool.
func logBestPrice(logger *zap.Logger, a *app, cfg config.QuoteConfig, side model.Side, amounts []*big.Int, prices []model.PoolPrices) {
	if len(prices) == 0 || len(amounts) == 0 {
		return
	}
	last := len(amounts) - 1
	best := prices[0]
	for _, p := range prices[1:] {
		better := p.Prices[last].Cmp(best.Prices[last]) > 0
		if side == model.SideBuy {
			better = p.Prices[last].Sign() > 0 && (best.Prices[last].Sign() == 0 || p.Prices[last].Cmp(best.Prices[last]) < 0)
		}
		if better {
			best = p
		}
	}
	in, okIn := tokenDecimals(a, cfg.From)
	out, okOut := tokenDecimals(a, cfg.To)
	if !okIn || !okOut {
		return
	}
	amountIn, amountOut := amounts[last], best.Prices[last]
	if side == model.SideBuy {
		amountIn, amountOut = amountOut, amountIn
	}
	logger.Info("best pool",
		zap.String("pool", best.PoolID),
		zap.String("amount_in", aggregate.FormatTokenAmount(amountIn, in)),
		zap.String("amount_out", aggregate.FormatTokenAmount(amountOut, out)),
		zap.String("price", aggregate.EffectivePrice(amountIn, in, amountOut, out)),
	)
}

func tokenDecimals(a *app, token string) (uint8, bool) {
	for _, p := range a.registry.PoolsForToken(token) {
		if m, ok := p.MainToken(token); ok {
			return m.Decimals, true
		}
	}
	return 0, false
}

func parseAmounts(inputs []string) ([]*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("amounts are required")
	}
	out := make([]*big.Int, len(inputs))
	for i, s := range inputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok || v.Sign() < 0 {
			return nil, fmt.Errorf("invalid amount %q", s)
		}
		if i > 0 && v.Cmp(out[i-1]) < 0 {
			return nil, fmt.Errorf("amounts must be ascending")
		}
		out[i] = v
	}
	return out, nil
}

func runPools(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	side, err := model.ParseSide(cfg.Side)
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg.Config, false, logger, metrics.Discard())
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.quotes.GetPoolIdentifiers(cfg.From, cfg.To, side, cfg.Block))
}

func runTop(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Token == "" {
		return fmt.Errorf("token is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := buildApp(cmd.Context(), cfg.Config, false, logger, metrics.Discard())
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.quotes.GetTopPoolsForToken(cfg.Token, cfg.Limit))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
