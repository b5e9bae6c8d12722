package domain

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// CooldownInput carries everything the cooldown of a deposit depends on.
// Durations are whole seconds.
type CooldownInput struct {
	CurrentBalance  sdkmath.Int
	LiquidityMinted sdkmath.Int
	NewCooldown     uint64
	LastCooldown    uint64
	LastDepositTime time.Time
	BlockTime       time.Time
}

// Cooldown returns the cooldown to record after a deposit.
//
// A deposit at least as large as the existing balance resets to at least the
// new cooldown. A smaller top-up extends what remains in proportion to its size,
// by at least one second, and never past the new cooldown.
func Cooldown(in CooldownInput) uint64 {
	remaining := RemainingCooldown(in.LastCooldown, in.LastDepositTime, in.BlockTime)
	minted := orZero(in.LiquidityMinted)
	balance := orZero(in.CurrentBalance)
	if minted.IsZero() {
		return remaining
	}
	if minted.GTE(balance) {
		return max(in.NewCooldown, remaining)
	}
	additional := minted.Mul(sdkmath.NewIntFromUint64(in.NewCooldown)).Quo(balance).Uint64()
	if additional < 1 {
		additional = 1
	}
	return min(in.NewCooldown, remaining+additional)
}

// LegacyCooldown is the behavior of schema version 1 funds: every deposit
// records the full new cooldown.
func LegacyCooldown(in CooldownInput) uint64 {
	return in.NewCooldown
}

// RemainingCooldown is what is left of lastCooldown at blockTime.
func RemainingCooldown(lastCooldown uint64, lastDeposit, blockTime time.Time) uint64 {
	elapsed := blockTime.Sub(lastDeposit)
	if elapsed < 0 {
		elapsed = 0
	}
	secs := uint64(elapsed / time.Second)
	if secs >= lastCooldown {
		return 0
	}
	return lastCooldown - secs
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
