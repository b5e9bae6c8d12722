package application

import (
	"context"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Withdraw burns shares and pays out a pro-rata slice of every supported asset.
func (s *Service) Withdraw(ctx context.Context, input types.WithdrawInput) (*types.WithdrawReceipt, error) {
	return s.withdraw(ctx, input, nil)
}

// WithdrawSafe fails when the realized value falls more than toleranceBps below
// the expected value of the burned shares.
func (s *Service) WithdrawSafe(ctx context.Context, input types.WithdrawInput, toleranceBps uint64) (*types.WithdrawReceipt, error) {
	if toleranceBps > domain.FeeDenominator {
		toleranceBps = domain.FeeDenominator
	}
	return s.withdraw(ctx, input, &toleranceBps)
}

// directWithdrawal is a plain pro-rata transfer planned before any share is burned.
type directWithdrawal struct {
	asset    address.Address
	decimals uint8
	amount   sdkmath.Int
}

type processedWithdrawal struct {
	asset     address.Address
	processor guardports.WithdrawProcessor
}

func (s *Service) withdraw(ctx context.Context, input types.WithdrawInput, toleranceBps *uint64) (*types.WithdrawReceipt, error) {
	if input.Recipient.IsZero() {
		input.Recipient = input.Holder
	}
	var receipt *types.WithdrawReceipt
	err := s.run(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		var err error
		receipt, err = s.withdrawFrom(ctx, f, input, toleranceBps, now)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

func (s *Service) withdrawFrom(ctx context.Context, f *domain.Fund, input types.WithdrawInput, toleranceBps *uint64, now time.Time) (*types.WithdrawReceipt, error) {
	// checks
	if err := s.requireActive(f); err != nil {
		return nil, err
	}
	if input.Shares.IsNil() || !input.Shares.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if bal := f.BalanceOf(input.Holder); bal.LT(input.Shares) {
		return nil, domain.ErrInsufficientShares.With("%s holds %s", input.Holder, bal)
	}
	if err := f.CheckCooldown(input.Holder, now); err != nil {
		return nil, err
	}

	fundValue, _, err := s.fundValue(ctx, f)
	if err != nil {
		return nil, err
	}
	s.mintFees(f, fundValue, now)

	supply := f.Supply
	residual := supply.Sub(input.Shares)
	if residual.IsPositive() && residual.LT(domain.MinLiquidity) {
		return nil, domain.ErrBelowSupplyThreshold.With("residual supply %s", residual)
	}
	expected := fundValue.Mul(input.Shares).Quo(supply)

	var direct []directWithdrawal
	var processed []processedWithdrawal
	for _, a := range f.Assets {
		guard, binding, err := s.guards.AssetGuard(a.Asset)
		if err != nil {
			return nil, err
		}
		if p, ok := guard.(guardports.WithdrawProcessor); ok {
			processed = append(processed, processedWithdrawal{asset: a.Asset, processor: p})
			continue
		}
		bal, err := guard.Balance(ctx, f.Address, a.Asset)
		if err != nil {
			return nil, err
		}
		amount := bal.Mul(input.Shares).Quo(supply)
		if amount.IsPositive() {
			direct = append(direct, directWithdrawal{asset: a.Asset, decimals: binding.Decimals, amount: amount})
		}
	}

	// effects
	if err := f.Burn(input.Holder, input.Shares); err != nil {
		return nil, err
	}
	if _, err := s.save(ctx, f); err != nil {
		return nil, err
	}

	// interactions
	withdrawn := make([]domain.WithdrawnAsset, 0, len(direct)+len(processed))
	realized := sdkmath.ZeroInt()
	for _, d := range direct {
		value, err := s.tokenValue(ctx, d.asset, d.decimals, d.amount)
		if err != nil {
			return nil, err
		}
		if err := s.custody.Push(ctx, d.asset, f.Address, input.Recipient, d.amount); err != nil {
			return nil, err
		}
		withdrawn = append(withdrawn, domain.WithdrawnAsset{Asset: d.asset, Amount: d.amount, Value: value})
		realized = realized.Add(value)
	}
	for _, p := range processed {
		result, err := p.processor.WithdrawProcessing(ctx, guarddomain.WithdrawRequest{
			Fund:               f.Address,
			Asset:              p.asset,
			PortionNumerator:   input.Shares,
			PortionDenominator: supply,
			Recipient:          input.Recipient,
		})
		if err != nil {
			return nil, fmt.Errorf("withdraw %s: %w", p.asset, err)
		}
		for _, released := range result.Assets {
			if !released.Amount.IsPositive() {
				continue
			}
			if err := s.custody.Push(ctx, released.Asset, f.Address, input.Recipient, released.Amount); err != nil {
				return nil, err
			}
			value := guarddomain.NonNegative(released.Value)
			withdrawn = append(withdrawn, domain.WithdrawnAsset{
				Asset:    released.Asset,
				Amount:   released.Amount,
				Value:    value,
				External: released.External,
			})
			realized = realized.Add(value)
		}
	}

	if toleranceBps != nil {
		floor := expected.MulRaw(int64(domain.FeeDenominator - *toleranceBps)).QuoRaw(domain.FeeDenominator)
		if realized.LT(floor) {
			return nil, domain.ErrHighWithdrawSlippage.With("realized %s, expected %s", realized, expected)
		}
	}

	f.Raise(domain.Withdrawn{
		BaseEvent:      base(f, now),
		Holder:         input.Holder,
		Recipient:      input.Recipient,
		Shares:         input.Shares,
		ValueWithdrawn: realized,
		Assets:         withdrawn,
		FundValue:      fundValue.Sub(expected),
		TotalSupply:    f.Supply,
	})
	if err := s.flush(ctx, f); err != nil {
		return nil, err
	}
	return &types.WithdrawReceipt{
		Fund:           f.Address,
		Holder:         input.Holder,
		Recipient:      input.Recipient,
		Shares:         input.Shares,
		ExpectedValue:  expected,
		ValueWithdrawn: realized,
		Assets:         withdrawn,
		TotalSupply:    f.Supply,
	}, nil
}

// Transfer moves shares between holders. The sender's cooldown must be over
// unless the receiver is exempt.
func (s *Service) Transfer(ctx context.Context, input types.TransferInput) error {
	_, err := s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := s.requireActive(f); err != nil {
			return err
		}
		if input.Shares.IsNil() || !input.Shares.IsPositive() || input.To.IsZero() {
			return domain.ErrInvalidAmount
		}
		if !s.system.CooldownExempt(input.To) {
			if err := f.CheckCooldown(input.From, now); err != nil {
				return err
			}
		}
		member, err := s.isMember(ctx, f, input.To)
		if err != nil {
			return err
		}
		if !member {
			return domain.ErrOnlyMembersAllowed.With("%s", input.To)
		}
		if err := f.Move(input.From, input.To, input.Shares); err != nil {
			return err
		}
		f.Raise(domain.SharesTransferred{BaseEvent: base(f, now), From: input.From, To: input.To, Shares: input.Shares})
		return nil
	})
	return err
}
