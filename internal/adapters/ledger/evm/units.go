package evm

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/okian/engageboard/internal/domain/model"
)

// toBaseUnits scales micro-units up to a token with the given decimals.
func toBaseUnits(a model.Amount, decimals int) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-model.AmountPrecision)), nil)
	return new(big.Int).Mul(a.Micros().BigInt(), scale)
}

// fromBaseUnits truncates a token quantity down to micro-units.
func fromBaseUnits(v *big.Int, decimals int) (model.Amount, error) {
	if v == nil {
		return model.Amount{}, nil
	}
	if v.Sign() < 0 {
		return model.Amount{}, fmt.Errorf("negative balance %s", v)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-model.AmountPrecision)), nil)
	return model.AmountFromMicros(sdkmath.NewIntFromBigInt(new(big.Int).Quo(v, scale)))
}
