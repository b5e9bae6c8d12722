package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/Apurer/fund-ledger/internal/app/ledger"
	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	feeactivities "github.com/Apurer/fund-ledger/internal/platform/temporal/activities/funds"
	feeworkflows "github.com/Apurer/fund-ledger/internal/platform/temporal/workflows/funds"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

const bootstrap = `
governance:
  owner: "0x000000000000000000000000000000000000000a"
assets:
  - address: "0x00000000000000000000000000000000000000c1"
    symbol: USDC
    decimals: 6
    feed: {kind: peg}
`

var (
	manager = address.MustParse("0x0000000000000000000000000000000000000001")
	usdc    = address.MustParse("0x00000000000000000000000000000000000000c1")
	t0      = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newSystem(t *testing.T) (*ledger.System, *clock.Manual) {
	t.Helper()
	file := &ledger.File{}
	require.NoError(t, ledger.Parse([]byte(bootstrap), file))
	clk := clock.NewManual(t0)
	sys, err := ledger.Build(file, ledger.Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	return sys, clk
}

func TestFeeIncreaseCommitsThroughRegisteredActivities(t *testing.T) {
	sys, clk := newSystem(t)
	ctx := context.Background()
	created, err := sys.Service.CreateFund(ctx, types.CreateFundInput{
		Manager: manager,
		Name:    "Alpha",
		Symbol:  "ALP",
		Assets:  []domain.SupportedAsset{{Asset: usdc, IsDeposit: true}},
		Fees:    domain.FeeNumerators{Performance: 1000, Management: 100},
	})
	require.NoError(t, err)
	fund := created.Entity.Address
	announced, err := sys.Service.AnnounceFeeIncrease(ctx, types.FeesInput{
		FundRef: types.FundRef{Fund: fund, Caller: manager},
		Fees:    domain.FeeNumerators{Performance: 1500, Management: 150},
	})
	require.NoError(t, err)
	delay := sys.Governance.FeeLimits().IncreaseDelay

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.SetStartTime(t0)
	Register(env, sys.Service)
	// the ledger clock follows workflow time up to the commit
	env.RegisterDelayedCallback(func() { clk.Set(t0.Add(delay)) }, delay-time.Minute)

	env.ExecuteWorkflow(feeworkflows.FeeIncreaseWorkflowName, feeworkflows.FeeIncreaseWorkflowInput{
		Fund:        fund,
		Caller:      manager,
		AnnouncedAt: announced.Entity.Fees.Proposal.AnnouncedAt,
		ValidAt:     t0.Add(delay),
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result feeactivities.FeeProposalResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.True(t, result.Committed)

	after, err := sys.Service.GetFund(ctx, fund)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), after.Entity.Fees.Performance)
	assert.Nil(t, after.Entity.Fees.Proposal)
}

func TestManagerFeeMintRunsAgainstService(t *testing.T) {
	sys, _ := newSystem(t)
	ctx := context.Background()
	created, err := sys.Service.CreateFund(ctx, types.CreateFundInput{
		Manager: manager,
		Name:    "Alpha",
		Symbol:  "ALP",
		Assets:  []domain.SupportedAsset{{Asset: usdc, IsDeposit: true}},
	})
	require.NoError(t, err)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	Register(env, sys.Service)
	env.ExecuteWorkflow(feeworkflows.ManagerFeeMintWorkflowName, feeworkflows.ManagerFeeMintWorkflowInput{Fund: created.Entity.Address})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var receipt types.FeeMintReceipt
	require.NoError(t, env.GetWorkflowResult(&receipt))
	assert.True(t, receipt.Total().IsZero())
}
