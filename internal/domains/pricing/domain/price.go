package domain

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

// Decimals is the fixed-point precision of every price and value.
const Decimals = 18

// One is 1.0 at price precision.
var One = sdkmath.NewIntWithDecimal(1, Decimals)

var (
	ErrPriceUnavailable = reason.New(reason.ClassEconomic, "PriceUnavailable", "no price source answered for the asset")
	ErrPriceStale       = reason.New(reason.ClassEconomic, "PriceStale", "every price answer is older than the maximum age")
)

// Round is one answer reported by a feed.
type Round struct {
	Price     sdkmath.Int
	UpdatedAt time.Time
}

// Quote is the aggregated price of an asset.
type Quote struct {
	Asset   address.Address
	Price   sdkmath.Int
	AsOf    time.Time
	Sources int
}

// Observation is a sampled aggregated price kept for time-weighted averages.
type Observation struct {
	At    time.Time
	Price sdkmath.Int
}
