package aggregate

import (
	"math/big"
)

const ratioScale = 18

// FormatTokenAmount renders a native amount as a decimal string.
func FormatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// EffectivePrice is output per unit input in whole tokens, or "" when
// either side is zero.
func EffectivePrice(amountIn *big.Int, decimalsIn uint8, amountOut *big.Int, decimalsOut uint8) string {
	if amountIn == nil || amountIn.Sign() == 0 || amountOut == nil || amountOut.Sign() == 0 {
		return ""
	}
	num := new(big.Int).Mul(amountOut, pow10(decimalsIn))
	den := new(big.Int).Mul(amountIn, pow10(decimalsOut))
	return new(big.Rat).SetFrac(num, den).FloatString(ratioScale)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
