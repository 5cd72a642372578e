// Package postgres serves pool metadata from Postgres and seeds it from a
// snapshot file.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultPricer/internal/model"
	"vaultPricer/internal/registry"
)

// Schema creates the metadata tables if they are missing.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_id       TEXT PRIMARY KEY,
	pool_address  TEXT NOT NULL UNIQUE,
	pool_type     TEXT NOT NULL,
	liquidity_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	gyro          JSONB,
	disabled      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_tokens (
	pool_id  TEXT NOT NULL REFERENCES pools (pool_id) ON DELETE CASCADE,
	position INT NOT NULL,
	token    TEXT NOT NULL,
	decimals SMALLINT NOT NULL,
	symbol   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (pool_id, position)
);
CREATE TABLE IF NOT EXISTS pool_nested_edges (
	parent_id TEXT NOT NULL,
	child_id  TEXT NOT NULL,
	kind      TEXT NOT NULL,
	PRIMARY KEY (parent_id, child_id)
);
`

// Store provides Postgres persistence for pool metadata.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

type poolRow struct {
	id           string
	address      string
	poolType     string
	liquidityUSD float64
	gyro         []byte
}

type tokenRow struct {
	poolID   string
	token    string
	decimals int16
	symbol   string
}

// FetchPools implements registry.MetadataSource.
func (s *Store) FetchPools(ctx context.Context) (registry.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool_id, pool_address, pool_type, liquidity_usd, gyro FROM pools ORDER BY pool_address`)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("query pools: %w", err)
	}
	var pools []poolRow
	for rows.Next() {
		var r poolRow
		if err := rows.Scan(&r.id, &r.address, &r.poolType, &r.liquidityUSD, &r.gyro); err != nil {
			rows.Close()
			return registry.Snapshot{}, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return registry.Snapshot{}, err
	}

	rows, err = s.pool.Query(ctx, `SELECT pool_id, token, decimals, symbol FROM pool_tokens ORDER BY pool_id, position`)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("query pool tokens: %w", err)
	}
	var tokens []tokenRow
	for rows.Next() {
		var r tokenRow
		if err := rows.Scan(&r.poolID, &r.token, &r.decimals, &r.symbol); err != nil {
			rows.Close()
			return registry.Snapshot{}, fmt.Errorf("scan pool token: %w", err)
		}
		tokens = append(tokens, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return registry.Snapshot{}, err
	}

	rows, err = s.pool.Query(ctx, `SELECT parent_id, child_id, kind FROM pool_nested_edges ORDER BY parent_id, child_id`)
	if err != nil {
		return registry.Snapshot{}, fmt.Errorf("query nested edges: %w", err)
	}
	var edges []model.NestedEdge
	for rows.Next() {
		var e model.NestedEdge
		var kind string
		if err := rows.Scan(&e.Parent, &e.Child, &kind); err != nil {
			rows.Close()
			return registry.Snapshot{}, fmt.Errorf("scan nested edge: %w", err)
		}
		e.Kind = model.EdgeKind(kind)
		edges = append(edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return registry.Snapshot{}, err
	}

	return assemble(pools, tokens, edges)
}

// assemble joins table rows into a snapshot. Tokens must be ordered by pool
// and position.
func assemble(pools []poolRow, tokens []tokenRow, edges []model.NestedEdge) (registry.Snapshot, error) {
	byPool := make(map[string][]model.Token, len(pools))
	for _, t := range tokens {
		if t.decimals < 0 || t.decimals > 255 {
			return registry.Snapshot{}, fmt.Errorf("token %s in pool %s has decimals %d", t.token, t.poolID, t.decimals)
		}
		byPool[t.poolID] = append(byPool[t.poolID], model.Token{Address: t.token, Decimals: uint8(t.decimals), Symbol: t.symbol})
	}

	snap := registry.Snapshot{Pools: make([]model.PoolMetadata, 0, len(pools)), Edges: edges}
	for _, p := range pools {
		meta := model.PoolMetadata{
			ID:           p.id,
			Address:      p.address,
			Type:         model.PoolType(p.poolType),
			Tokens:       byPool[p.id],
			LiquidityUSD: p.liquidityUSD,
		}
		if len(p.gyro) > 0 {
			var g model.GyroParams
			if err := json.Unmarshal(p.gyro, &g); err != nil {
				return registry.Snapshot{}, fmt.Errorf("decode gyro params of pool %s: %w", p.id, err)
			}
			meta.Gyro = &g
		}
		snap.Pools = append(snap.Pools, meta)
	}
	return snap, nil
}

// DisabledPools implements registry.MetadataSource.
func (s *Store) DisabledPools(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool_address FROM pools WHERE disabled ORDER BY pool_address`)
	if err != nil {
		return nil, fmt.Errorf("query disabled pools: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpsertPools inserts or updates every pool, its token list and the nested
// edges in one batch. Addresses in the disabled list are flagged.
func (s *Store) UpsertPools(ctx context.Context, snap registry.Snapshot) error {
	if len(snap.Pools) == 0 && len(snap.Edges) == 0 {
		return nil
	}
	disabled := make(map[string]bool, len(snap.Disabled))
	for _, addr := range snap.Disabled {
		disabled[strings.ToLower(addr)] = true
	}

	batch := &pgx.Batch{}
	for _, p := range snap.Pools {
		p.Normalize()
		var gyro []byte
		if p.Gyro != nil {
			raw, err := json.Marshal(p.Gyro)
			if err != nil {
				return fmt.Errorf("encode gyro params of pool %s: %w", p.ID, err)
			}
			gyro = raw
		}
		batch.Queue(`
			INSERT INTO pools (pool_id, pool_address, pool_type, liquidity_usd, gyro, disabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				pool_type = EXCLUDED.pool_type,
				liquidity_usd = EXCLUDED.liquidity_usd,
				gyro = EXCLUDED.gyro,
				disabled = EXCLUDED.disabled,
				updated_at = now()
		`, p.ID, p.Address, string(p.Type), p.LiquidityUSD, gyro, disabled[p.Address])
		batch.Queue(`DELETE FROM pool_tokens WHERE pool_id = $1`, p.ID)
		for i, t := range p.Tokens {
			batch.Queue(`
				INSERT INTO pool_tokens (pool_id, position, token, decimals, symbol)
				VALUES ($1, $2, $3, $4, $5)
			`, p.ID, i, t.Address, int16(t.Decimals), t.Symbol)
		}
	}
	for _, e := range snap.Edges {
		batch.Queue(`
			INSERT INTO pool_nested_edges (parent_id, child_id, kind)
			VALUES ($1, $2, $3)
			ON CONFLICT (parent_id, child_id) DO UPDATE SET kind = EXCLUDED.kind
		`, e.Parent, e.Child, string(e.Kind))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
