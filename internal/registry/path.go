package registry

import (
	"errors"
	"fmt"
	"strings"

	"vaultPricer/internal/model"
)

// ErrNoPath means a pool cannot route the requested pair.
var ErrNoPath = errors.New("no path through pool")

// ResolvePath returns the hops needed to trade tokenIn for tokenOut through
// meta: the inverted path of tokenIn, the pool's own hop, then the path of
// tokenOut. For BUY the hop order is reversed so that amounts can be threaded
// from the output side.
func ResolvePath(meta model.PoolMetadata, tokenIn, tokenOut string, side model.Side) (model.Path, error) {
	tokenIn, tokenOut = strings.ToLower(tokenIn), strings.ToLower(tokenOut)
	if tokenIn == tokenOut {
		return nil, fmt.Errorf("%w: identical tokens %s", ErrNoPath, tokenIn)
	}
	in, ok := meta.MainToken(tokenIn)
	if !ok {
		return nil, fmt.Errorf("%w: pool %s does not reach %s", ErrNoPath, meta.Address, tokenIn)
	}
	out, ok := meta.MainToken(tokenOut)
	if !ok {
		return nil, fmt.Errorf("%w: pool %s does not reach %s", ErrNoPath, meta.Address, tokenOut)
	}

	poolIn, poolOut := in.PoolToken(), out.PoolToken()
	if poolIn == poolOut {
		return nil, fmt.Errorf("%w: %s and %s both enter pool %s through %s", ErrNoPath, tokenIn, tokenOut, meta.Address, poolIn)
	}
	if in.DeeplyNested && out.DeeplyNested && sharePool(in.Path, out.Path) {
		return nil, fmt.Errorf("%w: %s and %s leave and re-enter the same nested pool", ErrNoPath, tokenIn, tokenOut)
	}

	path := make(model.Path, 0, len(in.Path)+len(out.Path)+1)
	path = append(path, in.Path.Invert()...)
	path = append(path, model.PathHop{Pool: meta.Address, PoolID: meta.ID, TokenIn: poolIn, TokenOut: poolOut})
	path = append(path, out.Path...)

	seen := make(map[model.PathHop]bool, len(path))
	for _, hop := range path {
		key := model.PathHop{Pool: hop.Pool, TokenIn: hop.TokenIn, TokenOut: hop.TokenOut}
		if seen[key] {
			return nil, fmt.Errorf("%w: pool %s used twice from %s to %s", ErrNoPath, hop.Pool, hop.TokenIn, hop.TokenOut)
		}
		seen[key] = true
	}

	switch side {
	case model.SideSell:
		return path, nil
	case model.SideBuy:
		return path.Reverse(), nil
	default:
		return nil, model.ErrUnsupportedSide
	}
}

func sharePool(a, b model.Path) bool {
	pools := make(map[string]bool, len(a))
	for _, hop := range a {
		pools[hop.Pool] = true
	}
	for _, hop := range b {
		if pools[hop.Pool] {
			return true
		}
	}
	return false
}
