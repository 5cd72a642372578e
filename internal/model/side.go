package model

import (
	"fmt"
	"strings"
)

// Side selects exact-input (SELL) or exact-output (BUY) quoting.
type Side string

const (
	SideSell Side = "SELL"
	SideBuy  Side = "BUY"
)

// ParseSide accepts SELL or BUY in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideSell:
		return SideSell, nil
	case SideBuy:
		return SideBuy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSide, s)
	}
}
