package model

import "strings"

// PoolType is the pool-type tag reported by the metadata service.
type PoolType string

const (
	PoolTypeWeighted               PoolType = "Weighted"
	PoolTypeLiquidityBootstrapping PoolType = "LiquidityBootstrapping"
	PoolTypeInvestment             PoolType = "Investment"
	PoolTypeStable                 PoolType = "Stable"
	PoolTypeMetaStable             PoolType = "MetaStable"
	PoolTypeStablePhantom          PoolType = "StablePhantom"
	PoolTypeComposableStable       PoolType = "ComposableStable"
	PoolTypeLinear                 PoolType = "Linear"
	PoolTypeAaveLinear             PoolType = "AaveLinear"
	PoolTypeERC4626Linear          PoolType = "ERC4626Linear"
	PoolTypeEulerLinear            PoolType = "EulerLinear"
	PoolTypeGearboxLinear          PoolType = "GearboxLinear"
	PoolTypeYearnLinear            PoolType = "YearnLinear"
	PoolTypeGyro2                  PoolType = "GyroTwo"
	PoolTypeGyro3                  PoolType = "GyroThree"
	PoolTypeGyroE                  PoolType = "GyroE"
)

// Family groups pool types sharing one math implementation.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyWeighted
	FamilyStable
	FamilyPhantom
	FamilyLinear
	FamilyGyro2
	FamilyGyro3
	FamilyGyroE
)

var poolFamilies = map[PoolType]Family{
	PoolTypeWeighted:               FamilyWeighted,
	PoolTypeLiquidityBootstrapping: FamilyWeighted,
	PoolTypeInvestment:             FamilyWeighted,
	PoolTypeStable:                 FamilyStable,
	PoolTypeMetaStable:             FamilyStable,
	PoolTypeStablePhantom:          FamilyPhantom,
	PoolTypeComposableStable:       FamilyPhantom,
	PoolTypeLinear:                 FamilyLinear,
	PoolTypeAaveLinear:             FamilyLinear,
	PoolTypeERC4626Linear:          FamilyLinear,
	PoolTypeEulerLinear:            FamilyLinear,
	PoolTypeGearboxLinear:          FamilyLinear,
	PoolTypeYearnLinear:            FamilyLinear,
	PoolTypeGyro2:                  FamilyGyro2,
	PoolTypeGyro3:                  FamilyGyro3,
	PoolTypeGyroE:                  FamilyGyroE,
}

// Family returns the math family for the tag, or FamilyUnknown.
func (t PoolType) Family() Family {
	return poolFamilies[t]
}

// EventSynced reports whether vault events alone keep this pool type's state
// current. Types whose scaling factors embed token rates drift without events.
func (t PoolType) EventSynced() bool {
	switch t.Family() {
	case FamilyWeighted, FamilyGyro2, FamilyGyro3, FamilyGyroE:
		return true
	case FamilyStable:
		return t == PoolTypeStable
	default:
		return false
	}
}

// HasPremintedBPT reports whether the pool holds its own liquidity token.
func (t PoolType) HasPremintedBPT() bool {
	f := t.Family()
	return f == FamilyPhantom || f == FamilyLinear
}

// GyroParams carries static curve geometry as 18-decimal integer strings.
type GyroParams struct {
	SqrtAlpha  string `json:"sqrtAlpha,omitempty"`
	SqrtBeta   string `json:"sqrtBeta,omitempty"`
	Root3Alpha string `json:"root3Alpha,omitempty"`
	Alpha      string `json:"alpha,omitempty"`
	Beta       string `json:"beta,omitempty"`
	C          string `json:"c,omitempty"`
	S          string `json:"s,omitempty"`
	Lambda     string `json:"lambda,omitempty"`
}

// MainToken is a token reachable through a pool, with the hops needed to
// reach it from one of the pool's own tokens. Direct tokens have no hops.
type MainToken struct {
	Token
	Path         Path `json:"path,omitempty"`
	DeeplyNested bool `json:"deeplyNested,omitempty"`
}

// PoolToken is the pool-level token the main token is reached from.
func (m MainToken) PoolToken() string {
	if len(m.Path) == 0 {
		return m.Address
	}
	return m.Path[0].TokenIn
}

// PoolMetadata is the immutable description of one pool.
type PoolMetadata struct {
	ID           string      `json:"id"`
	Address      string      `json:"address"`
	Type         PoolType    `json:"poolType"`
	Tokens       []Token     `json:"tokens"`
	Gyro         *GyroParams `json:"gyro,omitempty"`
	LiquidityUSD float64     `json:"totalLiquidity,omitempty"`

	// MainTokens is derived by the registry on ingestion.
	MainTokens []MainToken `json:"mainTokens,omitempty"`
}

// Normalize lowercases every address in place.
func (p *PoolMetadata) Normalize() {
	p.ID = strings.ToLower(p.ID)
	p.Address = strings.ToLower(p.Address)
	for i := range p.Tokens {
		p.Tokens[i].Address = strings.ToLower(p.Tokens[i].Address)
	}
}

// TokenIndex returns the position of token in the pool token list, or -1.
func (p PoolMetadata) TokenIndex(token string) int {
	token = strings.ToLower(token)
	for i, t := range p.Tokens {
		if t.Address == token {
			return i
		}
	}
	return -1
}

// BptIndex returns the index of the pool's own liquidity token, or -1.
func (p PoolMetadata) BptIndex() int {
	return p.TokenIndex(p.Address)
}

// MainToken looks up a derived main token by address.
func (p PoolMetadata) MainToken(token string) (MainToken, bool) {
	token = strings.ToLower(token)
	for _, m := range p.MainTokens {
		if m.Address == token {
			return m, true
		}
	}
	return MainToken{}, false
}

// EdgeKind labels an edge in the nested-pool graph.
type EdgeKind string

const (
	// EdgeNestedMainToken means the parent pool holds the child's liquidity
	// token and inherits the child's main tokens through it.
	EdgeNestedMainToken EdgeKind = "nested-main-token"
)

// NestedEdge links a parent pool to a child pool by pool id.
type NestedEdge struct {
	Parent string   `json:"parent"`
	Child  string   `json:"child"`
	Kind   EdgeKind `json:"kind"`
}
