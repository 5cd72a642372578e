package registry

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"vaultPricer/internal/model"
)

// view is one immutable ingestion of the pool list.
type view struct {
	pools     []model.PoolMetadata
	byAddress map[string]int
	byID      map[string]int
	byToken   map[string][]int
	children  map[string][]string
}

// buildView normalizes a snapshot, links the nested graph and derives every
// pool's main tokens.
func buildView(snap Snapshot, logger *zap.Logger) *view {
	v := &view{
		byAddress: make(map[string]int, len(snap.Pools)),
		byID:      make(map[string]int, len(snap.Pools)),
		byToken:   make(map[string][]int),
		children:  make(map[string][]string),
	}

	pools := make([]model.PoolMetadata, 0, len(snap.Pools))
	for _, p := range snap.Pools {
		p.Tokens = append([]model.Token(nil), p.Tokens...)
		p.MainTokens = nil
		p.Normalize()
		if p.Type.Family() == model.FamilyUnknown {
			logger.Debug("skip pool with unsupported type", zap.String("pool", p.Address), zap.String("type", string(p.Type)))
			continue
		}
		if _, dup := v.byAddress[p.Address]; dup {
			logger.Debug("skip duplicate pool", zap.String("pool", p.Address))
			continue
		}
		v.byAddress[p.Address] = len(pools)
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Address < pools[j].Address })
	for i, p := range pools {
		v.byAddress[p.Address] = i
		v.byID[p.ID] = i
	}

	for _, e := range snap.Edges {
		parent, child := strings.ToLower(e.Parent), strings.ToLower(e.Child)
		if e.Kind != model.EdgeNestedMainToken {
			continue
		}
		pi, okP := v.byID[parent]
		ci, okC := v.byID[child]
		if !okP || !okC || parent == child {
			logger.Debug("skip nested edge with unknown pool", zap.String("parent", parent), zap.String("child", child))
			continue
		}
		if pools[pi].TokenIndex(pools[ci].Address) < 0 {
			logger.Debug("skip nested edge, parent does not hold child token", zap.String("parent", parent), zap.String("child", child))
			continue
		}
		v.children[parent] = append(v.children[parent], child)
	}
	for parent := range v.children {
		sort.Strings(v.children[parent])
	}

	d := &deriver{view: v, pools: pools, done: make(map[string][]model.MainToken), visiting: make(map[string]bool)}
	for i := range pools {
		pools[i].MainTokens = d.mainTokens(pools[i].ID)
		for _, m := range pools[i].MainTokens {
			v.byToken[m.Address] = append(v.byToken[m.Address], i)
		}
	}
	v.pools = pools
	return v
}

type deriver struct {
	view     *view
	pools    []model.PoolMetadata
	done     map[string][]model.MainToken
	visiting map[string]bool
}

// mainTokens lists a pool's own tokens, minus its preminted BPT, followed by
// the main tokens inherited from nested children. Each inherited token gets
// the child's hop prefixed onto its path. The first route found wins.
func (d *deriver) mainTokens(id string) []model.MainToken {
	if mts, ok := d.done[id]; ok {
		return mts
	}
	if d.visiting[id] {
		return nil
	}
	d.visiting[id] = true
	defer delete(d.visiting, id)

	p := d.pools[d.view.byID[id]]
	seen := make(map[string]bool, len(p.Tokens))
	out := make([]model.MainToken, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		if t.Address == p.Address || seen[t.Address] {
			continue
		}
		seen[t.Address] = true
		out = append(out, model.MainToken{Token: t})
	}

	for _, childID := range d.view.children[id] {
		child := d.pools[d.view.byID[childID]]
		for _, m := range d.mainTokens(childID) {
			if seen[m.Address] || m.Address == p.Address {
				continue
			}
			seen[m.Address] = true
			path := make(model.Path, 0, len(m.Path)+1)
			path = append(path, model.PathHop{
				Pool:     child.Address,
				PoolID:   child.ID,
				TokenIn:  child.Address,
				TokenOut: m.PoolToken(),
			})
			path = append(path, m.Path...)
			out = append(out, model.MainToken{Token: m.Token, Path: path, DeeplyNested: len(path) >= 2})
		}
	}
	d.done[id] = out
	return out
}
