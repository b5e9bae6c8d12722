package ports

import (
	"context"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// FeeIncreaseTicket tracks a scheduled fee increase.
type FeeIncreaseTicket struct {
	WorkflowID string
	Fund       address.Address
	ValidAt    time.Time
}

// FeeWorkflows exposes durable fee operations (announce, wait out the delay, commit).
type FeeWorkflows interface {
	ScheduleFeeIncrease(ctx context.Context, input types.FeesInput) (*FeeIncreaseTicket, error)
	CancelFeeIncrease(ctx context.Context, input types.FundRef) error
	MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error)
}
