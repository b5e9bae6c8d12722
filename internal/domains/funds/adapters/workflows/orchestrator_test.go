package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	govdomain "github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	govports "github.com/Apurer/fund-ledger/internal/domains/governance/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	fund    = address.MustParse("0x00000000000000000000000000000000000000f1")
	manager = address.MustParse("0x00000000000000000000000000000000000000a1")
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

// stubService implements only the fee use cases; anything else panics.
type stubService struct {
	ports.Service
	announced []types.FeesInput
	renounced []types.FundRef
	minted    []address.Address
}

func (s *stubService) AnnounceFeeIncrease(_ context.Context, input types.FeesInput) (*types.FundProjection, error) {
	s.announced = append(s.announced, input)
	f := &domain.Fund{Address: input.Fund}
	f.Fees.Proposal = &domain.FeeProposal{Numerators: input.Fees, AnnouncedAt: t0}
	return &types.FundProjection{Entity: f}, nil
}

func (s *stubService) RenounceFeeIncrease(_ context.Context, input types.FundRef) (*types.FundProjection, error) {
	s.renounced = append(s.renounced, input)
	return &types.FundProjection{Entity: &domain.Fund{Address: input.Fund}}, nil
}

func (s *stubService) MintManagerFee(_ context.Context, f address.Address) (*types.FeeMintReceipt, error) {
	s.minted = append(s.minted, f)
	return &types.FeeMintReceipt{Fund: f, MintedAt: t0}, nil
}

type stubSystem struct {
	govports.SystemState
}

func (stubSystem) FeeLimits() govdomain.FeeLimits {
	return govdomain.FeeLimits{IncreaseDelay: 28 * 24 * time.Hour}
}

func TestInlineFeeWorkflowsScheduleReturnsValidAt(t *testing.T) {
	svc := &stubService{}
	wf := NewInlineFeeWorkflows(svc, stubSystem{})

	ticket, err := wf.ScheduleFeeIncrease(context.Background(), types.FeesInput{
		FundRef: types.FundRef{Fund: fund, Caller: manager},
		Fees:    domain.FeeNumerators{Performance: 2000},
	})
	require.NoError(t, err)
	require.Equal(t, fund, ticket.Fund)
	require.Empty(t, ticket.WorkflowID)
	require.True(t, ticket.ValidAt.Equal(t0.Add(28*24*time.Hour)))
	require.Len(t, svc.announced, 1)
}

func TestInlineFeeWorkflowsCancelAndMintDelegate(t *testing.T) {
	svc := &stubService{}
	wf := NewInlineFeeWorkflows(svc, stubSystem{})

	require.NoError(t, wf.CancelFeeIncrease(context.Background(), types.FundRef{Fund: fund, Caller: manager}))
	require.Equal(t, []types.FundRef{{Fund: fund, Caller: manager}}, svc.renounced)

	receipt, err := wf.MintManagerFee(context.Background(), fund)
	require.NoError(t, err)
	require.Equal(t, fund, receipt.Fund)
	require.Equal(t, []address.Address{fund}, svc.minted)
}

func TestUnconfiguredOrchestratorsFail(t *testing.T) {
	_, err := (*InlineFeeWorkflows)(nil).MintManagerFee(context.Background(), fund)
	require.Error(t, err)
	_, err = (&TemporalFeeWorkflows{}).ScheduleFeeIncrease(context.Background(), types.FeesInput{})
	require.Error(t, err)
}

func TestFeeIncreaseWorkflowIDIsStablePerFund(t *testing.T) {
	require.Equal(t, feeIncreaseWorkflowID(fund), feeIncreaseWorkflowID(fund))
	require.Contains(t, feeIncreaseWorkflowID(fund), fund.String())
}
