package application

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
)

// Deposit mints shares for the deposited value using the default cooldown.
func (s *Service) Deposit(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error) {
	return s.deposit(ctx, input, s.system.DefaultCooldown(), false)
}

// DepositWithCustomCooldown is a deposit by a whitelisted caller, who applies
// its configured cooldown instead of the default one.
func (s *Service) DepositWithCustomCooldown(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error) {
	cooldown, ok := s.system.CustomCooldown(input.Depositor)
	if !ok {
		return nil, domain.ErrOnlyCustomCooldown.With("%s", input.Depositor)
	}
	return s.deposit(ctx, input, cooldown, true)
}

func (s *Service) deposit(ctx context.Context, input types.DepositInput, cooldown time.Duration, custom bool) (*types.DepositReceipt, error) {
	if input.Recipient.IsZero() {
		input.Recipient = input.Depositor
	}
	var fingerprint string
	if input.IdempotencyKey != "" && s.idempotency != nil {
		var err error
		if fingerprint, err = FingerprintDeposit(input, custom); err != nil {
			return nil, err
		}
	}

	var receipt *types.DepositReceipt
	err := s.run(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if fingerprint != "" {
			// looked up under the fund lock so a concurrent retry waits for the first attempt
			replayed, err := s.replayDeposit(ctx, input.IdempotencyKey, fingerprint)
			if err != nil {
				return err
			}
			if replayed != nil {
				receipt = replayed
				return nil
			}
		}
		var err error
		receipt, err = s.depositInto(ctx, f, input, cooldown, now)
		if err != nil {
			return err
		}
		if fingerprint != "" {
			return s.rememberDeposit(ctx, input, fingerprint, receipt, now)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

func (s *Service) depositInto(ctx context.Context, f *domain.Fund, input types.DepositInput, cooldown time.Duration, now time.Time) (*types.DepositReceipt, error) {
	if err := s.requireActive(f); err != nil {
		return nil, err
	}
	if input.Amount.IsNil() || !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !f.IsDepositAsset(input.Asset) {
		return nil, domain.ErrInvalidDepositAsset.With("%s", input.Asset)
	}
	member, err := s.isMember(ctx, f, input.Recipient)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, domain.ErrOnlyMembersAllowed.With("%s", input.Recipient)
	}

	guard, binding, err := s.guards.AssetGuard(input.Asset)
	if err != nil {
		return nil, err
	}
	if _, composite := guard.(guardports.PositionValuer); composite {
		return nil, domain.ErrInvalidDepositAsset.With("%s is a position", input.Asset)
	}
	fundValue, _, err := s.fundValue(ctx, f)
	if err != nil {
		return nil, err
	}
	// Existing holders pay accrued fees at the pre-deposit price.
	s.mintFees(f, fundValue, now)

	valueDeposited, err := s.tokenValue(ctx, input.Asset, binding.Decimals, input.Amount)
	if err != nil {
		return nil, err
	}
	if valueDeposited.LT(f.MinDepositUSD) {
		return nil, domain.ErrBelowMinimumDeposit.With("%s < %s", valueDeposited, f.MinDepositUSD)
	}

	var gross sdkmath.Int
	switch {
	case f.Supply.IsZero():
		gross = valueDeposited
	case fundValue.IsZero():
		return nil, domain.ErrZeroFundValue
	default:
		gross = valueDeposited.Mul(f.Supply).Quo(fundValue)
	}
	shares := gross.MulRaw(int64(domain.FeeDenominator - f.Fees.Entry)).QuoRaw(domain.FeeDenominator)
	if shares.LT(domain.MinLiquidity) {
		return nil, domain.ErrInvalidLiquidityMinted.With("%s shares", shares)
	}
	entryFee := gross.Sub(shares)

	h := f.Holder(input.Recipient)
	recorded := f.CooldownFor(domain.CooldownInput{
		CurrentBalance:  h.Balance,
		LiquidityMinted: shares,
		NewCooldown:     uint64(cooldown / time.Second),
		LastCooldown:    h.LastCooldown,
		LastDepositTime: h.LastDepositTime,
		BlockTime:       now,
	})
	f.Mint(input.Recipient, shares)
	s.mintEntryFee(f, entryFee)
	f.RecordDeposit(input.Recipient, recorded, now)

	receipt := &types.DepositReceipt{
		Fund:           f.Address,
		Recipient:      input.Recipient,
		Asset:          input.Asset,
		Amount:         input.Amount,
		ValueDeposited: valueDeposited,
		Shares:         shares,
		EntryFeeShares: entryFee,
		Cooldown:       time.Duration(recorded) * time.Second,
		CooldownEndsAt: f.Holder(input.Recipient).CooldownEndsAt(),
		TotalSupply:    f.Supply,
		FundValue:      fundValue.Add(valueDeposited),
	}
	f.Raise(domain.Deposited{
		BaseEvent:      base(f, now),
		Depositor:      input.Depositor,
		Recipient:      input.Recipient,
		Asset:          input.Asset,
		Amount:         input.Amount,
		ValueDeposited: valueDeposited,
		Shares:         shares,
		EntryFeeShares: entryFee,
		FundValue:      receipt.FundValue,
		TotalSupply:    f.Supply,
		Cooldown:       recorded,
	})
	if _, err := s.save(ctx, f); err != nil {
		return nil, err
	}
	if err := s.custody.Pull(ctx, input.Asset, input.Depositor, f.Address, input.Amount); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *Service) replayDeposit(ctx context.Context, key, fingerprint string) (*types.DepositReceipt, error) {
	record, err := s.idempotency.Get(ctx, key)
	if err != nil || record == nil {
		return nil, err
	}
	if record.RequestHash != fingerprint {
		return nil, domain.ErrIdempotencyConflict.With("key %q", key)
	}
	var receipt types.DepositReceipt
	if err := json.Unmarshal(record.Response, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *Service) rememberDeposit(ctx context.Context, input types.DepositInput, fingerprint string, receipt *types.DepositReceipt, now time.Time) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	saved, err := s.idempotency.Save(ctx, ports.IdempotencyRecord{
		Key:         input.IdempotencyKey,
		RequestHash: fingerprint,
		Fund:        input.Fund,
		Response:    payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return err
	}
	// another process stored the key first; roll this deposit back
	if saved != nil && !bytes.Equal(saved.Response, payload) {
		return domain.ErrIdempotencyConflict.With("key %q was stored concurrently", input.IdempotencyKey)
	}
	return nil
}
