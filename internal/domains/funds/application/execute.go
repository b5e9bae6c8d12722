package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Execute forwards a guarded call from the fund to an external contract.
func (s *Service) Execute(ctx context.Context, input types.ExecuteInput) (*types.ExecutionReceipt, error) {
	if s.executor == nil {
		return nil, errNotConfigured
	}
	var receipt *types.ExecutionReceipt
	err := s.run(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := s.requireActive(f); err != nil {
			return err
		}
		guard := s.contractGuard(input.Target)
		if guard == nil {
			return domain.ErrInvalidTransaction.With("no guard for %s", input.Target)
		}
		fc := s.fundContext(f)
		auth, err := guard.Authorize(ctx, fc, input.Target, input.Data)
		if err != nil {
			return err
		}
		if auth.OpTag == "" {
			return domain.ErrInvalidTransaction.With("%s returned no operation", guard.Name())
		}
		if !auth.Public && !f.IsManagerOrTrader(input.Caller) {
			return domain.ErrOnlyManagerOrTrader
		}

		if err := s.executor.Call(ctx, f.Address, input.Target, input.Data); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExternalCallFailed, err)
		}
		if after, ok := guard.(guardports.AfterCallGuard); ok {
			if err := after.AfterCall(ctx, fc, input.Target, input.Data); err != nil {
				return err
			}
		}

		selector := ""
		if len(input.Data) >= 4 {
			selector = "0x" + hex.EncodeToString(input.Data[:4])
		}
		f.Raise(domain.TransactionExecuted{
			BaseEvent: base(f, now),
			Caller:    input.Caller,
			Target:    input.Target,
			Guard:     auth.Guard,
			OpTag:     auth.OpTag,
			Public:    auth.Public,
			Selector:  selector,
		})
		receipt = &types.ExecutionReceipt{
			Fund:   f.Address,
			Target: input.Target,
			Guard:  auth.Guard,
			OpTag:  auth.OpTag,
			Public: auth.Public,
		}
		return s.flush(ctx, f)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

// contractGuard resolves the guard for target: its contract guard, or the guard
// of the asset at target when that guard also authorizes calls.
func (s *Service) contractGuard(target address.Address) guardports.ContractGuard {
	if g, ok := s.guards.ContractGuard(target); ok && g != nil {
		return g
	}
	assetGuard, _, err := s.guards.AssetGuard(target)
	if err != nil {
		return nil
	}
	if g, ok := assetGuard.(guardports.ContractGuard); ok {
		return g
	}
	return nil
}
