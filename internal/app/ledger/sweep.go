package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	funddomain "github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// FeeMinter mints the accrued manager fee of one fund.
type FeeMinter interface {
	MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error)
}

// SweepResult summarizes one pass over every fund.
type SweepResult struct {
	Funds   int
	Minted  int
	Skipped int
	Failed  int
}

// SweepManagerFees mints the manager fee of every fund. Paused funds are
// skipped; other failures are logged and reported together.
func SweepManagerFees(ctx context.Context, funds fundsports.Service, minter FeeMinter, logger *slog.Logger) (SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	list, err := funds.ListFunds(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list funds: %w", err)
	}
	var (
		result SweepResult
		errs   []error
	)
	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Funds++
		fund := p.Entity.Address
		receipt, err := minter.MintManagerFee(ctx, fund)
		switch {
		case err == nil:
			if receipt != nil && receipt.Total().IsPositive() {
				result.Minted++
			}
		case errors.Is(err, funddomain.ErrPoolPaused):
			result.Skipped++
			logger.Debug("fee sweep skipped paused fund", slog.String("fund", fund.String()))
		default:
			result.Failed++
			logger.Warn("fee sweep failed", slog.String("fund", fund.String()), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", fund, err))
		}
	}
	return result, errors.Join(errs...)
}
