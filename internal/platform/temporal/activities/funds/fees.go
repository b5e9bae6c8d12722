package funds

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const (
	// CommitFeeIncreaseActivityName applies an announced fee increase once its delay elapsed.
	CommitFeeIncreaseActivityName = "funds.activities.CommitFeeIncrease"
	// RenounceFeeIncreaseActivityName drops an announced fee increase.
	RenounceFeeIncreaseActivityName = "funds.activities.RenounceFeeIncrease"
	// MintManagerFeeActivityName mints accrued manager fees of one fund.
	MintManagerFeeActivityName = "funds.activities.MintManagerFee"
)

// FeeProposalRequest identifies one announced proposal. AnnouncedAt pins the
// proposal so a later announcement is never acted on by an older workflow.
type FeeProposalRequest struct {
	types.FundRef
	AnnouncedAt time.Time
}

// FeeProposalResult reports what happened to the proposal.
type FeeProposalResult struct {
	Fund       address.Address
	Committed  bool
	Renounced  bool
	Superseded bool
	Fees       domain.FeeNumerators
}

// Activities groups activities that operate on the funds bounded context.
type Activities struct {
	service fundsports.Service
}

// NewActivities wires the ledger service into the Temporal activities bundle.
func NewActivities(service fundsports.Service) *Activities {
	return &Activities{service: service}
}

// CommitFeeIncrease commits the pinned proposal, or reports it superseded.
func (a *Activities) CommitFeeIncrease(ctx context.Context, req FeeProposalRequest) (*FeeProposalResult, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("fee commit activity not initialized", "fund", req.Fund.String())
		return nil, errors.New("fee commit activity not initialized")
	}
	logger.Info("CommitFeeIncrease activity started", "fund", req.Fund.String())
	current, err := a.pinned(ctx, req)
	if err != nil {
		return nil, err
	}
	if current == nil {
		logger.Info("fee proposal superseded; skipping commit", "fund", req.Fund.String())
		return &FeeProposalResult{Fund: req.Fund, Superseded: true}, nil
	}
	projection, err := a.service.CommitFeeIncrease(ctx, req.FundRef)
	if err != nil {
		logger.Error("CommitFeeIncrease activity failed", "fund", req.Fund.String(), "error", err)
		return nil, activityError(err)
	}
	logger.Info("CommitFeeIncrease activity completed", "fund", req.Fund.String())
	return &FeeProposalResult{Fund: req.Fund, Committed: true, Fees: projection.Entity.Fees.FeeNumerators}, nil
}

// RenounceFeeIncrease renounces the pinned proposal, or reports it superseded.
func (a *Activities) RenounceFeeIncrease(ctx context.Context, req FeeProposalRequest) (*FeeProposalResult, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("fee renounce activity not initialized", "fund", req.Fund.String())
		return nil, errors.New("fee renounce activity not initialized")
	}
	current, err := a.pinned(ctx, req)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &FeeProposalResult{Fund: req.Fund, Superseded: true}, nil
	}
	projection, err := a.service.RenounceFeeIncrease(ctx, req.FundRef)
	if err != nil {
		logger.Error("RenounceFeeIncrease activity failed", "fund", req.Fund.String(), "error", err)
		return nil, activityError(err)
	}
	logger.Info("RenounceFeeIncrease activity completed", "fund", req.Fund.String())
	return &FeeProposalResult{Fund: req.Fund, Renounced: true, Fees: projection.Entity.Fees.FeeNumerators}, nil
}

// MintManagerFee mints the manager fee accrued by fund.
func (a *Activities) MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.service == nil {
		logger.Error("fee mint activity not initialized", "fund", fund.String())
		return nil, errors.New("fee mint activity not initialized")
	}
	receipt, err := a.service.MintManagerFee(ctx, fund)
	if err != nil {
		logger.Error("MintManagerFee activity failed", "fund", fund.String(), "error", err)
		return nil, activityError(err)
	}
	logger.Info("MintManagerFee activity completed", "fund", fund.String(), "shares", receipt.Total().String())
	return receipt, nil
}

// pinned returns the pending proposal when it is still the one announced at req.AnnouncedAt.
func (a *Activities) pinned(ctx context.Context, req FeeProposalRequest) (*domain.FeeProposal, error) {
	projection, err := a.service.GetFund(ctx, req.Fund)
	if err != nil {
		return nil, activityError(err)
	}
	p := projection.Entity.Fees.Proposal
	if p == nil || !p.AnnouncedAt.Equal(req.AnnouncedAt) {
		return nil, nil
	}
	return p, nil
}

// activityError stops retries for coded ledger failures other than timing ones,
// which become valid on their own.
func activityError(err error) error {
	r := reason.Of(err)
	if r == nil || r.Class == reason.ClassTiming {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), r.Code, err)
}
