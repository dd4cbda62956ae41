package types

import (
	"math"
	"math/big"
)

// UnitsToRaw converts a whole-token amount to raw units at the given
// decimals, truncating any sub-raw remainder. Non-finite or non-positive
// amounts convert to zero.
func UnitsToRaw(units float64, decimals uint8) *big.Int {
	if units <= 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return big.NewInt(0)
	}
	scale := new(big.Float).SetInt(decimalScale(decimals))
	scaled := new(big.Float).Mul(big.NewFloat(units), scale)
	raw, _ := scaled.Int(nil)
	return raw
}

// RawToUnits converts a raw token amount to whole-token units.
func RawToUnits(raw *big.Int, decimals uint8) float64 {
	f := new(big.Float).SetInt(raw)
	f.Quo(f, new(big.Float).SetInt(decimalScale(decimals)))
	out, _ := f.Float64()
	return out
}

func decimalScale(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
