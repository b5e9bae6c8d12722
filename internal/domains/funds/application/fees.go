package application

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// MintManagerFee mints accrued streaming and performance fees. Anyone may call it.
func (s *Service) MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error) {
	var receipt *types.FeeMintReceipt
	err := s.run(ctx, fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := s.requireActive(f); err != nil {
			return err
		}
		value, _, err := s.fundValue(ctx, f)
		if err != nil {
			return err
		}
		receipt = s.mintFees(f, value, now)
		_, err = s.save(ctx, f)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

func (s *Service) accrueFees(ctx context.Context, f *domain.Fund, now time.Time) error {
	if f.Supply.IsZero() {
		f.Fees.LastFeeMintTime = now
		return nil
	}
	value, _, err := s.fundValue(ctx, f)
	if err != nil {
		return err
	}
	s.mintFees(f, value, now)
	return nil
}

// mintFees mints what accrued up to now at fund value and moves the checkpoint.
// The high-water mark only ever rises.
func (s *Service) mintFees(f *domain.Fund, value sdkmath.Int, now time.Time) *types.FeeMintReceipt {
	receipt := &types.FeeMintReceipt{
		Fund:           f.Address,
		ManagerShares:  sdkmath.ZeroInt(),
		ProtocolShares: sdkmath.ZeroInt(),
		TokenPrice:     domain.TokenPrice(value, f.Supply),
		MintedAt:       now,
	}
	fee := f.Fees.AvailableManagerFee(value, f.Supply, now)
	f.Fees.LastFeeMintTime = now
	if fee.IsPositive() {
		protocol := s.system.ProtocolFee()
		managerShares, protocolShares := domain.SplitProtocolFee(fee, protocol.Numerator, protocol.Denominator)
		if protocol.Treasury.IsZero() {
			managerShares, protocolShares = fee, sdkmath.ZeroInt()
		}
		f.Mint(f.Manager, managerShares)
		f.Mint(protocol.Treasury, protocolShares)
		receipt.ManagerShares = managerShares
		receipt.ProtocolShares = protocolShares
	}
	price := domain.TokenPrice(value, f.Supply)
	receipt.TokenPrice = price
	if price.GT(f.Fees.TokenPriceAtLastFeeMint) {
		f.Fees.TokenPriceAtLastFeeMint = price
	}
	if fee.IsPositive() {
		f.Raise(domain.ManagerFeeMinted{
			BaseEvent:        base(f, now),
			Manager:          f.Manager,
			ManagerShares:    receipt.ManagerShares,
			Treasury:         s.system.ProtocolFee().Treasury,
			ProtocolShares:   receipt.ProtocolShares,
			TokenPrice:       price,
			TokenPriceAtMint: f.Fees.TokenPriceAtLastFeeMint,
		})
	}
	return receipt
}

// mintEntryFee splits entry-fee shares between the manager and the treasury.
func (s *Service) mintEntryFee(f *domain.Fund, shares sdkmath.Int) {
	if !shares.IsPositive() {
		return
	}
	protocol := s.system.ProtocolFee()
	if protocol.Treasury.IsZero() {
		f.Mint(f.Manager, shares)
		return
	}
	managerShares, protocolShares := domain.SplitProtocolFee(shares, protocol.Numerator, protocol.Denominator)
	f.Mint(f.Manager, managerShares)
	f.Mint(protocol.Treasury, protocolShares)
}
