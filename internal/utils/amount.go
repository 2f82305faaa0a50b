package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a decimal amount to the chain's integer base units
// (wei, lamports, satoshi) using the configured decimals.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", amount)
	}
	shifted := amount.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits converts integer base units back to a decimal amount.
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, 0).Shift(-decimals)
}
