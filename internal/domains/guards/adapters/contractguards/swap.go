// Package contractguards authorizes calls a fund makes into external protocols.
package contractguards

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const (
	SigSwapExactIn = "swapExactIn(address,address,uint256,uint256,address)"

	bpsDenominator = 10000
)

var selSwapExactIn = calldata.SelectorOf(SigSwapExactIn)

// SwapRouter guards a token swap router. The bought token must be supported,
// proceeds must go to the fund and the quoted minimum output may not undercut the
// oracle value of the input by more than the allowed slippage.
type SwapRouter struct {
	oracle      pricingports.Oracle
	assets      ports.AssetDirectory
	slippageBps int64
}

func NewSwapRouter(oracle pricingports.Oracle, assets ports.AssetDirectory, slippageBps int64) *SwapRouter {
	return &SwapRouter{oracle: oracle, assets: assets, slippageBps: slippageBps}
}

func (g *SwapRouter) Name() string { return "swap_router" }

func (g *SwapRouter) Authorize(ctx context.Context, fund domain.FundContext, _ address.Address, data []byte) (domain.Authorization, error) {
	dec, err := calldata.Decode(data)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if dec.Selector() != selSwapExactIn {
		return domain.Authorization{}, domain.ErrSelectorNotAllowed.With("%s on %s", dec.Selector(), g.Name())
	}
	var (
		tokenIn, tokenOut, recipient address.Address
		amountIn, minOut             sdkmath.Int
	)
	if tokenIn, err = dec.Address(0); err == nil {
		if tokenOut, err = dec.Address(1); err == nil {
			if amountIn, err = dec.Uint(2); err == nil {
				if minOut, err = dec.Uint(3); err == nil {
					recipient, err = dec.Address(4)
				}
			}
		}
	}
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if !fund.Supports(tokenOut) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("%s", tokenOut)
	}
	if recipient != fund.Fund {
		return domain.Authorization{}, domain.ErrInvalidRecipient.With("%s", recipient)
	}
	valueIn, err := g.value(ctx, tokenIn, amountIn)
	if err != nil {
		return domain.Authorization{}, err
	}
	valueOut, err := g.value(ctx, tokenOut, minOut)
	if err != nil {
		return domain.Authorization{}, err
	}
	floor := valueIn.MulRaw(bpsDenominator - g.slippageBps).QuoRaw(bpsDenominator)
	if valueOut.LT(floor) {
		return domain.Authorization{}, domain.ErrSlippage.With("min out worth %s, need %s", valueOut, floor)
	}
	return domain.Authorization{Guard: g.Name(), OpTag: "swap", Assets: []address.Address{tokenIn, tokenOut}}, nil
}

func (g *SwapRouter) value(ctx context.Context, asset address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	b, err := g.assets.Binding(asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	quote, err := g.oracle.Price(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return domain.Value(amount, quote.Price, b.Decimals), nil
}

var _ ports.ContractGuard = (*SwapRouter)(nil)
