package model

// PathHop is one leg of a route through a single pool.
type PathHop struct {
	Pool     string `json:"pool"`
	PoolID   string `json:"poolId"`
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
}

// Path is an ordered hop sequence.
type Path []PathHop

// Reverse returns the hops in reverse order, each hop unchanged.
func (p Path) Reverse() Path {
	out := make(Path, len(p))
	for i, hop := range p {
		out[len(p)-1-i] = hop
	}
	return out
}

// Invert returns the path walked backwards: hops reversed and each hop's
// tokens swapped.
func (p Path) Invert() Path {
	out := make(Path, len(p))
	for i, hop := range p {
		out[len(p)-1-i] = PathHop{Pool: hop.Pool, PoolID: hop.PoolID, TokenIn: hop.TokenOut, TokenOut: hop.TokenIn}
	}
	return out
}

// Pools lists the pool addresses in hop order.
func (p Path) Pools() []string {
	out := make([]string, len(p))
	for i, hop := range p {
		out[i] = hop.Pool
	}
	return out
}
