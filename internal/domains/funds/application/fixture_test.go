package application

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	fundmemory "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/memory"
	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	govapp "github.com/Apurer/fund-ledger/internal/domains/governance/application"
	govdomain "github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/assetguards"
	guardapp "github.com/Apurer/fund-ledger/internal/domains/guards/application"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	pricingapp "github.com/Apurer/fund-ledger/internal/domains/pricing/application"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

var (
	owner   = address.MustParse("0x000000000000000000000000000000000000000a")
	manager = address.MustParse("0x0000000000000000000000000000000000000001")
	trader  = address.MustParse("0x0000000000000000000000000000000000000004")
	alice   = address.MustParse("0x0000000000000000000000000000000000000002")
	bob     = address.MustParse("0x0000000000000000000000000000000000000003")
	usdc    = address.MustParse("0x00000000000000000000000000000000000000c1")
	weth    = address.MustParse("0x00000000000000000000000000000000000000e1")
	dai     = address.MustParse("0x00000000000000000000000000000000000000d1")
	t0      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx      context.Context
	clock    *clock.Manual
	oracle   *pricingapp.Oracle
	wethFeed *feeds.Manual
	registry *guardapp.Registry
	gov      *govapp.Service
	ledger   *tokens.Ledger
	repo     *fundmemory.Repository
	recorder *fundmemory.Recorder
	router   *fundmemory.Router
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(t0)
	f := &fixture{
		ctx:      context.Background(),
		clock:    clk,
		oracle:   pricingapp.NewOracle(clk),
		wethFeed: feeds.NewManual("weth"),
		registry: guardapp.NewRegistry(),
		ledger:   tokens.NewLedger(),
		repo:     fundmemory.NewRepository(),
		recorder: fundmemory.NewRecorder(),
		router:   fundmemory.NewRouter(),
	}
	gov, err := govapp.NewService(govdomain.DefaultSettings(owner), f.registry, f.oracle)
	require.NoError(t, err)
	f.gov = gov

	require.NoError(t, gov.SetAssetGuard(owner, assetguards.NewToken(f.ledger, f.registry)))
	f.registerToken(t, usdc, 6)
	f.registerToken(t, weth, 18)
	f.registerToken(t, dai, 18)
	require.NoError(t, gov.SetPriceFeeds(owner, usdc, feeds.NewPeg(clk)))
	require.NoError(t, gov.SetPriceFeeds(owner, dai, feeds.NewPeg(clk)))
	require.NoError(t, gov.SetPriceFeeds(owner, weth, f.wethFeed))
	f.setWethPrice(2000)

	f.wire(fundmemory.NewIdempotencyStore())
	return f
}

// wire builds the service over the fixture's components. Markets that hold
// positions are passed as extra snapshotters so they roll back with the fund.
func (f *fixture) wire(idem ports.IdempotencyStore, markets ...fundmemory.Snapshotter) {
	components := []fundmemory.Snapshotter{f.repo, f.recorder, f.ledger}
	if s, ok := idem.(fundmemory.Snapshotter); ok {
		components = append(components, s)
	}
	components = append(components, markets...)
	f.svc = NewService(Dependencies{
		Repository:  f.repo,
		Transactor:  fundmemory.NewTransactor(components...),
		Custody:     fundmemory.NewCustody(f.ledger),
		Executor:    f.router,
		Guards:      f.registry,
		Oracle:      f.oracle,
		System:      f.gov,
		Clock:       f.clock,
		Recorder:    f.recorder,
		Idempotency: idem,
	})
}

func (f *fixture) registerToken(t *testing.T, asset address.Address, decimals uint8) {
	t.Helper()
	require.NoError(t, f.gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: asset, Tag: guarddomain.TagToken, Decimals: decimals}))
}

func (f *fixture) setWethPrice(dollars int64) {
	f.wethFeed.Push(weth, usd(dollars), f.clock.Now())
}

func (f *fixture) createFund(t *testing.T, fees domain.FeeNumerators) address.Address {
	t.Helper()
	proj, err := f.svc.CreateFund(f.ctx, types.CreateFundInput{
		Manager: manager,
		Name:    "Alpha",
		Symbol:  "ALP",
		Assets:  []domain.SupportedAsset{{Asset: usdc, IsDeposit: true}, {Asset: weth}},
		Fees:    fees,
	})
	require.NoError(t, err)
	return proj.Entity.Address
}

// fund gives holder amount of asset and approves the fund to pull it.
func (f *fixture) fund(t *testing.T, fund, asset, holder address.Address, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(asset, holder, amount))
	f.ledger.Approve(asset, holder, fund, f.ledger.Allowance(asset, holder, fund).Add(amount))
}

func (f *fixture) deposit(t *testing.T, fund, holder address.Address, usdcUnits sdkmath.Int) *types.DepositReceipt {
	t.Helper()
	f.fund(t, fund, usdc, holder, usdcUnits)
	receipt, err := f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: holder, Recipient: holder, Asset: usdc, Amount: usdcUnits})
	require.NoError(t, err)
	return receipt
}

func (f *fixture) load(t *testing.T, fund address.Address) *domain.Fund {
	t.Helper()
	proj, err := f.svc.GetFund(f.ctx, fund)
	require.NoError(t, err)
	return proj.Entity
}

func (f *fixture) balance(asset, holder address.Address) sdkmath.Int {
	b, _ := f.ledger.BalanceOf(f.ctx, asset, holder)
	return b
}

// pastCooldown moves beyond the default cooldown and refreshes the weth price.
func (f *fixture) pastCooldown(wethDollars int64) {
	f.clock.Advance(24*time.Hour + time.Second)
	f.setWethPrice(wethDollars)
}

func usd(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 18) }

func usdcAmount(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 6) }
