// Package assetguards holds the asset guard for every supported asset type.
package assetguards

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// DefaultTWAPWindow is used by derivative guards when none is configured.
const DefaultTWAPWindow = 30 * time.Minute

type valuer struct {
	oracle pricingports.Oracle
	assets ports.AssetDirectory
}

func (v valuer) spotValue(ctx context.Context, asset address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	b, err := v.assets.Binding(asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	quote, err := v.oracle.Price(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return domain.Value(amount, quote.Price, b.Decimals), nil
}

func (v valuer) holdingsValue(ctx context.Context, holdings []ports.Holding) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	for _, h := range holdings {
		value, err := v.spotValue(ctx, h.Asset, h.Amount)
		if err != nil {
			return sdkmath.Int{}, err
		}
		total = total.Add(value)
	}
	return total, nil
}
