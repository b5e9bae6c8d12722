package funds

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	feeactivities "github.com/Apurer/fund-ledger/internal/platform/temporal/activities/funds"
	"github.com/Apurer/fund-ledger/internal/platform/temporal/sequences"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

const (
	// FeeIncreaseWorkflowName is the public identifier for registering the fee timelock workflow.
	FeeIncreaseWorkflowName = "funds.workflows.FeeIncrease"
	// ManagerFeeMintWorkflowName is the public identifier for registering the fee mint workflow.
	ManagerFeeMintWorkflowName = "funds.workflows.ManagerFeeMint"
	// FeesTaskQueue is the queue consumed by the worker processing fund fee workflows.
	FeesTaskQueue = "FUND_FEES"
	// RenounceFeeIncreaseSignal cancels a pending fee increase. Its payload is a types.FundRef.
	RenounceFeeIncreaseSignal = "renounce-fee-increase"
)

// FeeIncreaseWorkflowInput describes an announced fee increase.
type FeeIncreaseWorkflowInput struct {
	Fund        address.Address
	Caller      address.Address
	AnnouncedAt time.Time
	ValidAt     time.Time
	TraceID     string
}

// FeeIncreaseWorkflow holds an announced fee increase until it may be committed.
func FeeIncreaseWorkflow(ctx workflow.Context, input FeeIncreaseWorkflowInput) (*feeactivities.FeeProposalResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("FeeIncreaseWorkflow started", withTraceID(input.TraceID, "fund", input.Fund.String())...)
	req := feeactivities.FeeProposalRequest{
		FundRef:     types.FundRef{Fund: input.Fund, Caller: input.Caller},
		AnnouncedAt: input.AnnouncedAt,
	}
	result, err := sequences.RunFeeIncreaseSequence(ctx, req, input.ValidAt, workflow.GetSignalChannel(ctx, RenounceFeeIncreaseSignal))
	if err != nil {
		logger.Error("FeeIncreaseWorkflow failed", withTraceID(input.TraceID, "fund", input.Fund.String(), "error", err)...)
		return nil, err
	}
	logger.Info("FeeIncreaseWorkflow completed", withTraceID(input.TraceID, "fund", input.Fund.String())...)
	return result, nil
}

// ManagerFeeMintWorkflowInput selects the fund whose fees are minted.
type ManagerFeeMintWorkflowInput struct {
	Fund    address.Address
	TraceID string
}

func ManagerFeeMintWorkflow(ctx workflow.Context, input ManagerFeeMintWorkflowInput) (*types.FeeMintReceipt, error) {
	logger := workflow.GetLogger(ctx)
	receipt, err := sequences.RunManagerFeeMintSequence(ctx, types.FundRef{Fund: input.Fund})
	if err != nil {
		logger.Error("ManagerFeeMintWorkflow failed", withTraceID(input.TraceID, "fund", input.Fund.String(), "error", err)...)
		return nil, err
	}
	return receipt, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
