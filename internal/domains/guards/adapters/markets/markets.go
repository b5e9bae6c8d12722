// Package markets simulates the external protocols guarded by the ledger so the
// whole execute and withdraw path can run without a chain. Every simulator
// settles through the shared token ledger.
package markets

import (
	"context"
	"errors"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	ErrUnknownMarket   = errors.New("unknown market")
	ErrUnknownSelector = errors.New("unknown selector")
	ErrNoPosition      = errors.New("no position")
	ErrMinOutput       = errors.New("output below minimum")
)

type pricer struct {
	oracle pricingports.Oracle
	assets ports.AssetDirectory
}

func (p pricer) value(ctx context.Context, asset address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	b, err := p.assets.Binding(asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	q, err := p.oracle.Price(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return domain.Value(amount, q.Price, b.Decimals), nil
}

func (p pricer) amount(ctx context.Context, asset address.Address, value sdkmath.Int) (sdkmath.Int, error) {
	b, err := p.assets.Binding(asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	q, err := p.oracle.Price(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return domain.Amount(value, q.Price, b.Decimals), nil
}

// settle moves a signed amount between holder and market: positive pays the
// holder, negative collects from the holder. Shortfalls of the market are minted.
func settle(ctx context.Context, ledger *tokens.Ledger, asset, market, holder address.Address, amount sdkmath.Int) error {
	switch {
	case amount.IsPositive():
		have, _ := ledger.BalanceOf(ctx, asset, market)
		if have.LT(amount) {
			if err := ledger.Mint(asset, market, amount.Sub(have)); err != nil {
				return err
			}
		}
		return ledger.Transfer(ctx, asset, market, holder, amount)
	case amount.IsNegative():
		return ledger.Transfer(ctx, asset, holder, market, amount.Neg())
	}
	return nil
}

func zeroIfNil(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}
