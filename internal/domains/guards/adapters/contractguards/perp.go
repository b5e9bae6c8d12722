package contractguards

import (
	"context"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const (
	SigTransferMargin    = "transferMargin(int256)"
	SigModifyPosition    = "modifyPosition(int256)"
	SigClosePosition     = "closePosition()"
	SigWithdrawAllMargin = "withdrawAllMargin()"
)

var (
	selTransferMargin    = calldata.SelectorOf(SigTransferMargin)
	selModifyPosition    = calldata.SelectorOf(SigModifyPosition)
	selClosePosition     = calldata.SelectorOf(SigClosePosition)
	selWithdrawAllMargin = calldata.SelectorOf(SigWithdrawAllMargin)
)

// PerpMarket guards perpetual futures markets. Sweeping all margin back to the
// fund is public; everything else is reserved to the manager and trader.
type PerpMarket struct {
	market       ports.PerpMarket
	maxPositions int
}

func NewPerpMarket(market ports.PerpMarket, maxPositions int) *PerpMarket {
	return &PerpMarket{market: market, maxPositions: maxPositions}
}

func (g *PerpMarket) Name() string { return "perp_market" }

func (g *PerpMarket) Authorize(ctx context.Context, fund domain.FundContext, target address.Address, data []byte) (domain.Authorization, error) {
	dec, err := calldata.Decode(data)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if !g.market.IsMarket(target) {
		return domain.Authorization{}, reason.Reject(g.Name(), "unknown market")
	}
	if !fund.Supports(target) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("perp position %s", target)
	}
	marginAsset, err := g.market.MarginAsset(ctx, target)
	if err != nil {
		return domain.Authorization{}, err
	}
	if !fund.Supports(marginAsset) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("margin asset %s", marginAsset)
	}
	auth := domain.Authorization{Guard: g.Name(), Assets: []address.Address{target, marginAsset}}
	switch dec.Selector() {
	case selTransferMargin:
		auth.OpTag = "perp.transfer_margin"
	case selModifyPosition:
		auth.OpTag = "perp.modify_position"
	case selClosePosition:
		auth.OpTag = "perp.close_position"
	case selWithdrawAllMargin:
		auth.OpTag = "perp.withdraw_all_margin"
		auth.Public = true
	default:
		return domain.Authorization{}, domain.ErrSelectorNotAllowed.With("%s on %s", dec.Selector(), g.Name())
	}
	if dec.Selector() == selTransferMargin || dec.Selector() == selModifyPosition {
		if _, err := dec.Int(0); err != nil {
			return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
		}
	}
	return auth, nil
}

// AfterCall enforces the open position limit once a position has been modified.
func (g *PerpMarket) AfterCall(ctx context.Context, fund domain.FundContext, _ address.Address, data []byte) error {
	if g.maxPositions <= 0 {
		return nil
	}
	dec, err := calldata.Decode(data)
	if err != nil || dec.Selector() != selModifyPosition {
		return nil
	}
	open := 0
	for _, asset := range fund.Assets {
		if !g.market.IsMarket(asset) {
			continue
		}
		pos, err := g.market.Position(ctx, asset, fund.Fund)
		if err != nil {
			return err
		}
		if !pos.Size.IsNil() && !pos.Size.IsZero() {
			open++
		}
	}
	if open > g.maxPositions {
		return domain.ErrMaxPositions.With("%d open, max %d", open, g.maxPositions)
	}
	return nil
}

var (
	_ ports.ContractGuard  = (*PerpMarket)(nil)
	_ ports.AfterCallGuard = (*PerpMarket)(nil)
)
