// Package fixedpoint implements 18-decimal unsigned fixed point arithmetic with
// checked 256-bit overflow semantics.
package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vaultPricer/internal/model"
)

var (
	ErrOverflow     = fmt.Errorf("fixed point overflow: %w", model.ErrMathOverflow)
	ErrSubUnderflow = fmt.Errorf("fixed point sub underflow: %w", model.ErrMathOverflow)
	ErrZeroDivision = fmt.Errorf("fixed point zero division: %w", model.ErrMathOverflow)
)

var (
	Zero = uint256.NewInt(0)
	One  = uint256.NewInt(1e18)
	Two  = uint256.NewInt(2e18)
	Four = uint256.NewInt(4e18)

	// MaxPowRelativeError bounds the LogExp pow approximation error (1e-14).
	MaxPowRelativeError = uint256.NewInt(10000)

	maxUint255 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 255), uint256.NewInt(1))
)

func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrSubUnderflow
	}
	return z, nil
}

// Mul is plain checked integer multiplication.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Div is plain integer division rounding down.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrZeroDivision
	}
	return new(uint256.Int).Div(a, b), nil
}

// DivRoundUp is plain integer division rounding up.
func DivRoundUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrZeroDivision
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	z := new(uint256.Int).Sub(a, uint256.NewInt(1))
	z.Div(z, b)
	return z.AddUint64(z, 1), nil
}

func MulDown(a, b *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return product.Div(product, One), nil
}

func MulUp(a, b *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	if product.IsZero() {
		return product, nil
	}
	product.SubUint64(product, 1)
	product.Div(product, One)
	return product.AddUint64(product, 1), nil
}

func DivDown(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrZeroDivision
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	inflated, err := Mul(a, One)
	if err != nil {
		return nil, err
	}
	return inflated.Div(inflated, b), nil
}

func DivUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrZeroDivision
	}
	if a.IsZero() {
		return new(uint256.Int), nil
	}
	inflated, err := Mul(a, One)
	if err != nil {
		return nil, err
	}
	inflated.SubUint64(inflated, 1)
	inflated.Div(inflated, b)
	return inflated.AddUint64(inflated, 1), nil
}

// Complement returns 1 - x, floored at zero.
func Complement(x *uint256.Int) *uint256.Int {
	if x.Lt(One) {
		return new(uint256.Int).Sub(One, x)
	}
	return new(uint256.Int)
}

// PowUp returns x^y rounded up, padding the LogExp result by its maximum
// relative error.
func PowUp(x, y *uint256.Int) (*uint256.Int, error) {
	switch {
	case y.Eq(One):
		return x.Clone(), nil
	case y.Eq(Two):
		return MulUp(x, x)
	case y.Eq(Four):
		square, err := MulUp(x, x)
		if err != nil {
			return nil, err
		}
		return MulUp(square, square)
	}

	raw, err := Pow(x, y)
	if err != nil {
		return nil, err
	}
	maxError, err := MulUp(raw, MaxPowRelativeError)
	if err != nil {
		return nil, err
	}
	maxError.AddUint64(maxError, 1)
	return Add(raw, maxError)
}

// PowDown returns x^y rounded down.
func PowDown(x, y *uint256.Int) (*uint256.Int, error) {
	switch {
	case y.Eq(One):
		return x.Clone(), nil
	case y.Eq(Two):
		return MulDown(x, x)
	case y.Eq(Four):
		square, err := MulDown(x, x)
		if err != nil {
			return nil, err
		}
		return MulDown(square, square)
	}

	raw, err := Pow(x, y)
	if err != nil {
		return nil, err
	}
	maxError, err := MulUp(raw, MaxPowRelativeError)
	if err != nil {
		return nil, err
	}
	maxError.AddUint64(maxError, 1)
	if raw.Lt(maxError) {
		return new(uint256.Int), nil
	}
	return raw.Sub(raw, maxError), nil
}

// Upscale normalizes a native amount to the 18-decimal basis, rounding up.
func Upscale(amount, scalingFactor *uint256.Int) (*uint256.Int, error) {
	return MulUp(amount, scalingFactor)
}

// DownscaleDown converts an 18-decimal amount back to native units, rounding down.
func DownscaleDown(amount, scalingFactor *uint256.Int) (*uint256.Int, error) {
	return DivDown(amount, scalingFactor)
}

// DownscaleUp converts an 18-decimal amount back to native units, rounding up.
func DownscaleUp(amount, scalingFactor *uint256.Int) (*uint256.Int, error) {
	return DivUp(amount, scalingFactor)
}

// ScalingFactor returns 10^(18-decimals) expressed as an 18-decimal value.
func ScalingFactor(decimals uint8) (*uint256.Int, error) {
	if decimals > 18 {
		return nil, fmt.Errorf("token decimals %d exceed 18", decimals)
	}
	exp := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(18-decimals)))
	return exp.Mul(exp, One), nil
}

// FromBig converts a non-negative big.Int, rejecting values that do not fit.
func FromBig(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s", v.String())
	}
	z, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// ToBig converts to big.Int; a nil input yields zero.
func ToBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

// MustFromDecimal parses a decimal constant and panics on malformed input.
func MustFromDecimal(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}
