package funds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	feeactivities "github.com/Apurer/fund-ledger/internal/platform/temporal/activities/funds"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	testFund    = address.MustParse("0x00000000000000000000000000000000000000f1")
	testManager = address.MustParse("0x00000000000000000000000000000000000000a1")
	testT0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetStartTime(testT0)
	acts := feeactivities.NewActivities(nil)
	env.RegisterActivityWithOptions(acts.CommitFeeIncrease, activity.RegisterOptions{Name: feeactivities.CommitFeeIncreaseActivityName})
	env.RegisterActivityWithOptions(acts.RenounceFeeIncrease, activity.RegisterOptions{Name: feeactivities.RenounceFeeIncreaseActivityName})
	env.RegisterActivityWithOptions(acts.MintManagerFee, activity.RegisterOptions{Name: feeactivities.MintManagerFeeActivityName})
	return env
}

func feeIncreaseInput() FeeIncreaseWorkflowInput {
	return FeeIncreaseWorkflowInput{
		Fund:        testFund,
		Caller:      testManager,
		AnnouncedAt: testT0,
		ValidAt:     testT0.Add(28 * 24 * time.Hour),
	}
}

func TestFeeIncreaseWorkflowCommitsAfterDelay(t *testing.T) {
	env := newEnv(t)
	committed := &feeactivities.FeeProposalResult{Fund: testFund, Committed: true, Fees: domain.FeeNumerators{Performance: 2000}}
	var commitTime time.Time
	env.OnActivity(feeactivities.CommitFeeIncreaseActivityName, mock.Anything, mock.Anything).
		Return(func(_ context.Context, req feeactivities.FeeProposalRequest) (*feeactivities.FeeProposalResult, error) {
			commitTime = env.Now()
			require.Equal(t, testManager, req.Caller)
			require.True(t, req.AnnouncedAt.Equal(testT0))
			return committed, nil
		})

	env.ExecuteWorkflow(FeeIncreaseWorkflow, feeIncreaseInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result feeactivities.FeeProposalResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.True(t, result.Committed)
	require.Equal(t, uint64(2000), result.Fees.Performance)
	require.False(t, commitTime.Before(testT0.Add(28*24*time.Hour)))
	env.AssertExpectations(t)
}

func TestFeeIncreaseWorkflowRenounceSignalSkipsCommit(t *testing.T) {
	env := newEnv(t)
	other := address.MustParse("0x00000000000000000000000000000000000000a2")
	env.OnActivity(feeactivities.RenounceFeeIncreaseActivityName, mock.Anything, mock.MatchedBy(func(req feeactivities.FeeProposalRequest) bool {
		return req.Caller == other
	})).Return(&feeactivities.FeeProposalResult{Fund: testFund, Renounced: true}, nil).Once()
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(RenounceFeeIncreaseSignal, types.FundRef{Fund: testFund, Caller: other})
	}, 24*time.Hour)

	env.ExecuteWorkflow(FeeIncreaseWorkflow, feeIncreaseInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result feeactivities.FeeProposalResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.True(t, result.Renounced)
	require.False(t, result.Committed)
	env.AssertExpectations(t)
}

func TestManagerFeeMintWorkflowReturnsReceipt(t *testing.T) {
	env := newEnv(t)
	receipt := &types.FeeMintReceipt{Fund: testFund, MintedAt: testT0}
	receipt.ManagerShares = domain.Precision
	receipt.ProtocolShares = domain.Precision.QuoRaw(10)
	env.OnActivity(feeactivities.MintManagerFeeActivityName, mock.Anything, testFund).Return(receipt, nil).Once()

	env.ExecuteWorkflow(ManagerFeeMintWorkflow, ManagerFeeMintWorkflowInput{Fund: testFund})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result types.FeeMintReceipt
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "1100000000000000000", result.Total().String())
}
