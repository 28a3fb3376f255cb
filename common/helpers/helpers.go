package helpers

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

const NATIVE_DECIMALS = 18

// ToBaseUnits converts a human-readable amount to the chain's smallest integer unit.
// Digits beyond the given decimals are truncated.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, errors.New("negative amount")
	}

	return amount.Shift(decimals).Truncate(0).BigInt(), nil
}

// FromBaseUnits scales a raw integer amount down by decimals. nil is treated as zero.
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}

	return decimal.NewFromBigInt(raw, -decimals)
}
