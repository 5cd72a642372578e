package aggregate

import (
	"math/big"
	"testing"

	"vaultPricer/internal/model"
)

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		value    *big.Int
		decimals uint8
		want     string
	}{
		{big.NewInt(13500000), 6, "13.500000"},
		{big.NewInt(-5), 2, "-0.05"},
		{big.NewInt(42), 0, "42"},
		{nil, 18, "0"},
	}
	for _, tt := range tests {
		if got := FormatTokenAmount(tt.value, tt.decimals); got != tt.want {
			t.Fatalf("FormatTokenAmount(%v, %d) = %s, want %s", tt.value, tt.decimals, got, tt.want)
		}
	}
}

func TestEffectivePrice(t *testing.T) {
	in := big.NewInt(13500000)
	out, _ := new(big.Int).SetString("13379816831223414577", 10)
	got := EffectivePrice(in, 6, out, 18)
	if got != "0.991097543053586265" {
		t.Fatalf("unexpected price %s", got)
	}
	if EffectivePrice(in, 6, new(big.Int), 18) != "" {
		t.Fatalf("zero output should have no price")
	}
}

func TestRank(t *testing.T) {
	tok := func(addr string) model.MainToken { return model.MainToken{Token: model.Token{Address: addr, Decimals: 18}} }
	pools := []model.PoolMetadata{
		{Address: "0xb", LiquidityUSD: 100, MainTokens: []model.MainToken{tok("0x1"), tok("0x2")}},
		{Address: "0xa", LiquidityUSD: 100, MainTokens: []model.MainToken{tok("0x1"), tok("0x3"), tok("0x4")}},
		{Address: "0xc", LiquidityUSD: 500, MainTokens: []model.MainToken{tok("0x1"), tok("0x2")}},
		{Address: "0xd", LiquidityUSD: 0, MainTokens: []model.MainToken{tok("0x1"), tok("0x2")}},
		{Address: "0xe", LiquidityUSD: 900, MainTokens: []model.MainToken{tok("0x2"), tok("0x3")}},
	}

	got := Rank("BalancerV2", "0x1", pools, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(got))
	}
	if got[0].Address != "0xc" || got[1].Address != "0xa" {
		t.Fatalf("unexpected order %s, %s", got[0].Address, got[1].Address)
	}
	if len(got[1].ConnectorTokens) != 2 || got[1].ConnectorTokens[0].Address != "0x3" {
		t.Fatalf("unexpected connectors %+v", got[1].ConnectorTokens)
	}
	if got[0].Exchange != "BalancerV2" {
		t.Fatalf("unexpected exchange %s", got[0].Exchange)
	}

	if all := Rank("BalancerV2", "0x1", pools, 0); len(all) != 3 {
		t.Fatalf("zero liquidity pool should be excluded, got %d pools", len(all))
	}
}
