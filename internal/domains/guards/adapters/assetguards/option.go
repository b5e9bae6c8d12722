package assetguards

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingdomain "github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Option guards option positions, valued at intrinsic value against the
// underlying TWAP.
type Option struct {
	valuer
	market ports.OptionMarket
	window time.Duration
}

func NewOption(market ports.OptionMarket, oracle pricingports.Oracle, assets ports.AssetDirectory, window time.Duration) *Option {
	if window <= 0 {
		window = DefaultTWAPWindow
	}
	return &Option{valuer: valuer{oracle: oracle, assets: assets}, market: market, window: window}
}

func (g *Option) Tag() domain.Tag { return domain.TagOption }

func (g *Option) Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	return g.Value(ctx, fund, asset)
}

func (g *Option) Value(ctx context.Context, fund, market address.Address) (sdkmath.Int, error) {
	pos, err := g.market.Position(ctx, market, fund)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if orZero(pos.Amount).IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	twap, err := g.oracle.TWAP(ctx, pos.Underlying, g.window)
	if err != nil {
		return sdkmath.Int{}, err
	}
	intrinsic := twap.Sub(pos.Strike)
	if !pos.Call {
		intrinsic = intrinsic.Neg()
	}
	return domain.NonNegative(pos.Amount.Mul(intrinsic).Quo(pricingdomain.One)), nil
}

// WithdrawProcessing closes the withdrawer's slice of contracts. When either the
// slice or what would remain is smaller than the market minimum the whole
// position is closed and the withdrawer receives the pro-rata part of the proceeds.
func (g *Option) WithdrawProcessing(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawResult, error) {
	pos, err := g.market.Position(ctx, req.Asset, req.Fund)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	held := orZero(pos.Amount)
	portion := req.Portion(held)
	if !portion.IsPositive() {
		return domain.WithdrawResult{}, nil
	}
	minimum, err := g.market.MinPosition(ctx, req.Asset)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	closing := portion
	residual := held.Sub(portion)
	if portion.LT(minimum) || (residual.IsPositive() && residual.LT(minimum)) {
		closing = held
	}
	proceeds, err := g.market.ClosePosition(ctx, req.Asset, req.Fund, closing)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	share := proceeds.Mul(portion).Quo(closing)
	if !share.IsPositive() {
		return domain.WithdrawResult{}, nil
	}
	value, err := g.spotValue(ctx, pos.Settlement, share)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	return domain.WithdrawResult{Assets: []domain.WithdrawnAsset{{
		Asset: pos.Settlement, Amount: share, Value: value, External: true,
	}}}, nil
}

var (
	_ ports.AssetGuard        = (*Option)(nil)
	_ ports.PositionValuer    = (*Option)(nil)
	_ ports.WithdrawProcessor = (*Option)(nil)
)
