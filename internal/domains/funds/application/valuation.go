package application

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// valueAsset returns the fund's balance and value of one supported asset.
func (s *Service) valueAsset(ctx context.Context, fund address.Address, asset domain.SupportedAsset) (types.AssetValuation, error) {
	guard, binding, err := s.guards.AssetGuard(asset.Asset)
	if err != nil {
		return types.AssetValuation{}, err
	}
	balance, err := guard.Balance(ctx, fund, asset.Asset)
	if err != nil {
		return types.AssetValuation{}, fmt.Errorf("balance of %s: %w", asset.Asset, err)
	}
	line := types.AssetValuation{
		Asset:     asset.Asset,
		Tag:       binding.Tag,
		IsDeposit: asset.IsDeposit,
		Balance:   balance,
	}
	if valuer, ok := guard.(guardports.PositionValuer); ok {
		v, err := valuer.Value(ctx, fund, asset.Asset)
		if err != nil {
			return types.AssetValuation{}, fmt.Errorf("value of %s: %w", asset.Asset, err)
		}
		line.Value = guarddomain.NonNegative(v)
		return line, nil
	}
	if balance.IsZero() {
		line.Value = sdkmath.ZeroInt()
		return line, nil
	}
	line.Value, err = s.tokenValue(ctx, asset.Asset, binding.Decimals, balance)
	return line, err
}

func (s *Service) tokenValue(ctx context.Context, asset address.Address, decimals uint8, amount sdkmath.Int) (sdkmath.Int, error) {
	quote, err := s.oracle.Price(ctx, asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return guarddomain.Value(amount, quote.Price, decimals), nil
}

// fundValue aggregates every supported asset in insertion order.
func (s *Service) fundValue(ctx context.Context, f *domain.Fund) (sdkmath.Int, []types.AssetValuation, error) {
	total := sdkmath.ZeroInt()
	lines := make([]types.AssetValuation, 0, len(f.Assets))
	for _, a := range f.Assets {
		line, err := s.valueAsset(ctx, f.Address, a)
		if err != nil {
			return sdkmath.Int{}, nil, err
		}
		total = total.Add(line.Value)
		lines = append(lines, line)
	}
	return total, lines, nil
}

// checkAssetUsable verifies an asset is registered and can be valued.
func (s *Service) checkAssetUsable(ctx context.Context, asset address.Address) error {
	guard, _, err := s.guards.AssetGuard(asset)
	if err != nil {
		return err
	}
	if _, ok := guard.(guardports.PositionValuer); ok {
		return nil
	}
	_, err = s.oracle.Price(ctx, asset)
	return err
}

func (s *Service) fundContext(f *domain.Fund) guarddomain.FundContext {
	return guarddomain.FundContext{
		Fund:    f.Address,
		Manager: f.Manager,
		Trader:  f.Trader,
		Assets:  f.AssetAddresses(),
	}
}

// isMember reports whether addr may hold shares of f. Holders of an approved
// membership collection token count as members.
func (s *Service) isMember(ctx context.Context, f *domain.Fund, addr address.Address) (bool, error) {
	if !f.IsPrivate() || f.IsListedMember(addr) {
		return true, nil
	}
	for _, c := range f.MembershipCollections {
		if !s.system.IsMembershipCollection(c) {
			continue
		}
		bal, err := s.custody.BalanceOf(ctx, c, addr)
		if err != nil {
			return false, err
		}
		if bal.IsPositive() {
			return true, nil
		}
	}
	return false, nil
}
