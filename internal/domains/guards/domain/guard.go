package domain

import (
	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

// Tag identifies an asset type. New types are added by registering a guard for a new tag.
type Tag string

const (
	TagToken      Tag = "token"
	TagLPShare    Tag = "lp_share"
	TagLending    Tag = "lending"
	TagPerpMargin Tag = "perp_margin"
	TagOption     Tag = "option"
)

var (
	ErrAssetNotRegistered = reason.New(reason.ClassPolicy, "AssetNotRegistered", "asset is not registered")
	ErrNoAssetGuard       = reason.New(reason.ClassPolicy, "NoAssetGuard", "no asset guard for asset type")
	ErrUnsupportedAsset   = reason.New(reason.ClassPolicy, "UnsupportedAsset", "asset is not supported by the fund")
	ErrInvalidRecipient   = reason.New(reason.ClassPolicy, "InvalidRecipient", "recipient is not the fund")
	ErrSelectorNotAllowed = reason.New(reason.ClassPolicy, "SelectorNotAllowed", "call selector is not allowed")
	ErrMaxPositions       = reason.New(reason.ClassPolicy, "MaxPositionsReached", "exceeds maximum open position count")
	ErrSlippage           = reason.New(reason.ClassEconomic, "SlippageExceeded", "minimum output is below the allowed slippage")
)

// AssetBinding is the registration of an asset: its type and base-unit precision.
type AssetBinding struct {
	Asset    address.Address
	Tag      Tag
	Decimals uint8
}

// FundContext is the fund state a guard is allowed to look at. Guards must not
// depend on anything else when authorizing.
type FundContext struct {
	Fund    address.Address
	Manager address.Address
	Trader  address.Address
	Assets  []address.Address
}

// Supports reports whether asset is in the supported set.
func (f FundContext) Supports(asset address.Address) bool {
	for _, a := range f.Assets {
		if a == asset {
			return true
		}
	}
	return false
}

// Authorization is the outcome of a permitted call.
type Authorization struct {
	Guard  string
	OpTag  string
	Public bool
	Assets []address.Address
}

// WithdrawRequest asks a guard to release a portion of a position.
type WithdrawRequest struct {
	Fund               address.Address
	Asset              address.Address
	PortionNumerator   sdkmath.Int
	PortionDenominator sdkmath.Int
	Recipient          address.Address
}

// Portion applies the request ratio to amount, flooring.
func (r WithdrawRequest) Portion(amount sdkmath.Int) sdkmath.Int {
	if r.PortionDenominator.IsNil() || r.PortionDenominator.IsZero() {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(r.PortionNumerator).Quo(r.PortionDenominator)
}

// WithdrawnAsset is one asset released to the fund's custody for the withdrawer.
type WithdrawnAsset struct {
	Asset    address.Address
	Amount   sdkmath.Int
	Value    sdkmath.Int
	External bool
}

// WithdrawResult lists what a guard released.
type WithdrawResult struct {
	Assets []WithdrawnAsset
}

// Value sums the realized value of every released asset.
func (r WithdrawResult) Value() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, a := range r.Assets {
		if !a.Value.IsNil() {
			total = total.Add(a.Value)
		}
	}
	return total
}
