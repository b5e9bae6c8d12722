package domain

import sdkmath "cosmossdk.io/math"

// Value converts amount base units priced at price (18 decimals per whole unit) into
// the valuation currency, flooring.
func Value(amount, price sdkmath.Int, decimals uint8) sdkmath.Int {
	if amount.IsNil() || price.IsNil() {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(price).Quo(sdkmath.NewIntWithDecimal(1, int(decimals)))
}

// Amount is the inverse of Value: how many base units are worth value at price, flooring.
func Amount(value, price sdkmath.Int, decimals uint8) sdkmath.Int {
	if value.IsNil() || price.IsNil() || !price.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return value.Mul(sdkmath.NewIntWithDecimal(1, int(decimals))).Quo(price)
}

// NonNegative floors v at zero.
func NonNegative(v sdkmath.Int) sdkmath.Int {
	if v.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return v
}
