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

// PerpMargin guards an isolated-margin perpetual position registered under the
// market address. Unrealized PnL is marked at the index TWAP.
type PerpMargin struct {
	valuer
	market ports.PerpMarket
	window time.Duration
}

func NewPerpMargin(market ports.PerpMarket, oracle pricingports.Oracle, assets ports.AssetDirectory, window time.Duration) *PerpMargin {
	if window <= 0 {
		window = DefaultTWAPWindow
	}
	return &PerpMargin{valuer: valuer{oracle: oracle, assets: assets}, market: market, window: window}
}

func (g *PerpMargin) Tag() domain.Tag { return domain.TagPerpMargin }

func (g *PerpMargin) Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	return g.Value(ctx, fund, asset)
}

// Value is margin plus PnL plus accrued funding, never negative.
func (g *PerpMargin) Value(ctx context.Context, fund, market address.Address) (sdkmath.Int, error) {
	pos, err := g.market.Position(ctx, market, fund)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return g.equity(ctx, market, pos)
}

func (g *PerpMargin) equity(ctx context.Context, market address.Address, pos ports.PerpPosition) (sdkmath.Int, error) {
	marginAsset, err := g.market.MarginAsset(ctx, market)
	if err != nil {
		return sdkmath.Int{}, err
	}
	total, err := g.spotValue(ctx, marginAsset, orZero(pos.Margin).Add(orZero(pos.Funding)))
	if err != nil {
		return sdkmath.Int{}, err
	}
	if size := orZero(pos.Size); !size.IsZero() {
		index, err := g.market.IndexAsset(ctx, market)
		if err != nil {
			return sdkmath.Int{}, err
		}
		twap, err := g.oracle.TWAP(ctx, index, g.window)
		if err != nil {
			return sdkmath.Int{}, err
		}
		pnl := size.Mul(twap.Sub(orZero(pos.EntryPrice))).Quo(pricingdomain.One)
		total = total.Add(pnl)
	}
	return domain.NonNegative(total), nil
}

// WithdrawProcessing releases the withdrawer's slice of equity in the margin
// asset. The position is closed outright when the margin left behind would fall
// below the market minimum.
func (g *PerpMargin) WithdrawProcessing(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawResult, error) {
	pos, err := g.market.Position(ctx, req.Asset, req.Fund)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	marginAsset, err := g.market.MarginAsset(ctx, req.Asset)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	binding, err := g.assets.Binding(marginAsset)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	margin := orZero(pos.Margin)

	var amount sdkmath.Int
	if orZero(pos.Size).IsZero() {
		amount = req.Portion(margin)
		if amount.IsPositive() {
			if err := g.market.WithdrawMargin(ctx, req.Asset, req.Fund, amount); err != nil {
				return domain.WithdrawResult{}, err
			}
		}
	} else {
		equity, err := g.equity(ctx, req.Asset, pos)
		if err != nil {
			return domain.WithdrawResult{}, err
		}
		quote, err := g.oracle.Price(ctx, marginAsset)
		if err != nil {
			return domain.WithdrawResult{}, err
		}
		amount = domain.Amount(req.Portion(equity), quote.Price, binding.Decimals)
		minMargin, err := g.market.MinMargin(ctx, req.Asset)
		if err != nil {
			return domain.WithdrawResult{}, err
		}
		if margin.Sub(amount).LT(minMargin) {
			released, err := g.market.Close(ctx, req.Asset, req.Fund)
			if err != nil {
				return domain.WithdrawResult{}, err
			}
			amount = sdkmath.MinInt(amount, released)
		} else {
			if err := g.market.ModifyPosition(ctx, req.Asset, req.Fund, req.Portion(pos.Size).Neg()); err != nil {
				return domain.WithdrawResult{}, err
			}
			if err := g.market.WithdrawMargin(ctx, req.Asset, req.Fund, amount); err != nil {
				return domain.WithdrawResult{}, err
			}
		}
	}
	if !amount.IsPositive() {
		return domain.WithdrawResult{}, nil
	}
	value, err := g.spotValue(ctx, marginAsset, amount)
	if err != nil {
		return domain.WithdrawResult{}, err
	}
	return domain.WithdrawResult{Assets: []domain.WithdrawnAsset{{
		Asset: marginAsset, Amount: amount, Value: value, External: true,
	}}}, nil
}

func orZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}

var (
	_ ports.AssetGuard        = (*PerpMargin)(nil)
	_ ports.PositionValuer    = (*PerpMargin)(nil)
	_ ports.WithdrawProcessor = (*PerpMargin)(nil)
)
