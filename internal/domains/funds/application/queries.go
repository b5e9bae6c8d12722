package application

import (
	"context"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// FundSummary values every supported asset and reports share prices and accrued fees.
func (s *Service) FundSummary(ctx context.Context, fund address.Address) (*types.FundSummary, error) {
	proj, err := s.repo.Get(ctx, fund)
	if err != nil {
		return nil, mapError(err)
	}
	f := proj.Entity
	total, lines, err := s.fundValue(ctx, f)
	if err != nil {
		return nil, mapError(err)
	}
	now := s.clock.Now()
	fee := f.Fees.AvailableManagerFee(total, f.Supply, now)
	summary := &types.FundSummary{
		Fund:                        f.Address,
		Name:                        f.Name,
		Symbol:                      f.Symbol,
		Manager:                     f.Manager,
		Trader:                      f.Trader,
		Private:                     f.IsPrivate(),
		TotalSupply:                 f.Supply,
		TotalValue:                  total,
		Assets:                      lines,
		TokenPrice:                  domain.TokenPrice(total, f.Supply),
		TokenPriceWithoutManagerFee: domain.TokenPrice(total, f.Supply.Add(fee)),
		AvailableManagerFee:         fee,
		Fees:                        f.Fees.FeeNumerators,
		ProposalState:               f.Fees.State(),
		Proposal:                    f.Fees.Proposal,
		MinDepositUSD:               f.MinDepositUSD,
		SchemaVersion:               f.SchemaVersion,
		Paused:                      s.system.IsPaused(f.Address),
	}
	return summary, nil
}

// Holder reports the balance and cooldown state of one holder.
func (s *Service) Holder(ctx context.Context, fund, holder address.Address) (*types.HolderView, error) {
	proj, err := s.repo.Get(ctx, fund)
	if err != nil {
		return nil, mapError(err)
	}
	h := proj.Entity.Holder(holder)
	remaining := domain.RemainingCooldown(h.LastCooldown, h.LastDepositTime, s.clock.Now())
	return &types.HolderView{
		Fund:              fund,
		Holder:            holder,
		Balance:           h.Balance,
		LastDepositTime:   h.LastDepositTime,
		LastCooldown:      time.Duration(h.LastCooldown) * time.Second,
		CooldownEndsAt:    h.CooldownEndsAt(),
		RemainingCooldown: time.Duration(remaining) * time.Second,
	}, nil
}
