package assetguards

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Lending guards a lending-market position registered under the market address.
// Its balance is the net value in the valuation currency, so the market asset is
// registered with 18 decimals.
type Lending struct {
	valuer
	market ports.LendingMarket
}

func NewLending(market ports.LendingMarket, oracle pricingports.Oracle, assets ports.AssetDirectory) *Lending {
	return &Lending{valuer: valuer{oracle: oracle, assets: assets}, market: market}
}

func (g *Lending) Tag() domain.Tag { return domain.TagLending }

func (g *Lending) Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	return g.Value(ctx, fund, asset)
}

// Value is collateral minus debt, floored at zero.
func (g *Lending) Value(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	pos, err := g.market.Position(ctx, asset, fund)
	if err != nil {
		return sdkmath.Int{}, err
	}
	collateral, err := g.holdingsValue(ctx, pos.Collateral)
	if err != nil {
		return sdkmath.Int{}, err
	}
	debt, err := g.holdingsValue(ctx, pos.Debt)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return domain.NonNegative(collateral.Sub(debt)), nil
}

// WithdrawProcessing asks the market to unwind the portion and reports what it released.
func (g *Lending) WithdrawProcessing(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawResult, error) {
	released, err := g.market.Unwind(ctx, req.Asset, req.Fund, req.PortionNumerator, req.PortionDenominator)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	var result domain.WithdrawResult
	for _, h := range released {
		if h.Amount.IsNil() || !h.Amount.IsPositive() {
			continue
		}
		value, err := g.spotValue(ctx, h.Asset, h.Amount)
		if err != nil {
			return domain.WithdrawResult{}, err
		}
		result.Assets = append(result.Assets, domain.WithdrawnAsset{Asset: h.Asset, Amount: h.Amount, Value: value, External: true})
	}
	return result, nil
}

var (
	_ ports.AssetGuard        = (*Lending)(nil)
	_ ports.PositionValuer    = (*Lending)(nil)
	_ ports.WithdrawProcessor = (*Lending)(nil)
)
