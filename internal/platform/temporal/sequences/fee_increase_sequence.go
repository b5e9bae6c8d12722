package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	feeactivities "github.com/Apurer/fund-ledger/internal/platform/temporal/activities/funds"
)

// RunFeeIncreaseSequence waits out the fee-increase delay and commits the
// proposal, unless a renounce request arrives on renounce first.
func RunFeeIncreaseSequence(ctx workflow.Context, req feeactivities.FeeProposalRequest, validAt time.Time, renounce workflow.ReceiveChannel) (*feeactivities.FeeProposalResult, error) {
	logger := workflow.GetLogger(ctx)
	fund := req.Fund.String()
	logger.Info("fee increase sequence started", "fund", fund, "validAt", validAt)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, options)

	wait := validAt.Sub(workflow.Now(ctx))
	if wait < 0 {
		wait = 0
	}
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, wait)

	var (
		renounced bool
		by        types.FundRef
	)
	selector := workflow.NewSelector(ctx)
	selector.AddFuture(timer, func(f workflow.Future) {
		_ = f.Get(timerCtx, nil)
	})
	selector.AddReceive(renounce, func(c workflow.ReceiveChannel, _ bool) {
		c.Receive(ctx, &by)
		renounced = true
		cancelTimer()
	})
	selector.Select(ctx)

	activityName := feeactivities.CommitFeeIncreaseActivityName
	if renounced {
		activityName = feeactivities.RenounceFeeIncreaseActivityName
		if !by.Caller.IsZero() {
			req.Caller = by.Caller
		}
	}
	var result feeactivities.FeeProposalResult
	if err := workflow.ExecuteActivity(ctx, activityName, req).Get(ctx, &result); err != nil {
		logger.Error("fee increase sequence failed", "fund", fund, "renounced", renounced, "error", err)
		return nil, err
	}
	logger.Info("fee increase sequence completed", "fund", fund, "committed", result.Committed, "renounced", result.Renounced, "superseded", result.Superseded)
	return &result, nil
}

// RunManagerFeeMintSequence mints the manager fee of one fund.
func RunManagerFeeMintSequence(ctx workflow.Context, input types.FundRef) (*types.FeeMintReceipt, error) {
	logger := workflow.GetLogger(ctx)
	options := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}
	var receipt types.FeeMintReceipt
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, options), feeactivities.MintManagerFeeActivityName, input.Fund).Get(ctx, &receipt)
	if err != nil {
		logger.Error("manager fee mint sequence failed", "fund", input.Fund.String(), "error", err)
		return nil, err
	}
	logger.Info("manager fee mint sequence completed", "fund", input.Fund.String(), "shares", receipt.Total().String())
	return &receipt, nil
}
