package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	fundmemory "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/memory"
	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

func TestDeposit_BootstrapMintsValueOneToOne(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})

	receipt := f.deposit(t, fund, alice, usdcAmount(1000))

	require.Equal(t, usd(1000).String(), receipt.ValueDeposited.String())
	require.Equal(t, usd(1000).String(), receipt.Shares.String())
	require.Equal(t, 24*time.Hour, receipt.Cooldown)
	require.Equal(t, t0.Add(24*time.Hour), receipt.CooldownEndsAt)
	require.Equal(t, usdcAmount(1000).String(), f.balance(usdc, fund).String())

	state := f.load(t, fund)
	require.Equal(t, state.Supply.String(), state.TotalBalances().String())
	require.Contains(t, f.recorder.Names(), "funds.fund.deposited")
}

func TestDeposit_SecondDepositorPaysPreDepositPrice(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))

	// the fund doubles in value before bob arrives
	require.NoError(t, f.ledger.Mint(usdc, fund, usdcAmount(1000)))
	receipt := f.deposit(t, fund, bob, usdcAmount(1000))

	require.Equal(t, usd(500).String(), receipt.Shares.String())
	require.Equal(t, usd(3000).String(), receipt.FundValue.String())
}

func TestDeposit_EntryFeeSplitWithTreasury(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{Entry: 100})

	receipt := f.deposit(t, fund, alice, usdcAmount(1000))

	require.Equal(t, usd(990).String(), receipt.Shares.String())
	require.Equal(t, usd(10).String(), receipt.EntryFeeShares.String())
	state := f.load(t, fund)
	require.Equal(t, usd(9).String(), state.BalanceOf(manager).String())
	require.Equal(t, usd(1).String(), state.BalanceOf(owner).String())
	require.Equal(t, usd(1000).String(), state.Supply.String())
}

func TestDeposit_Rejections(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})

	f.fund(t, fund, weth, alice, usd(1))
	_, err := f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: weth, Amount: usd(1)})
	require.ErrorIs(t, err, domain.ErrInvalidDepositAsset)

	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: sdkmath.ZeroInt()})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: address.Derive("missing"), Depositor: alice, Asset: usdc, Amount: usdcAmount(1)})
	require.ErrorIs(t, err, domain.ErrFundNotFound)

	require.NoError(t, f.gov.SetFundPaused(owner, fund, true))
	f.fund(t, fund, usdc, alice, usdcAmount(10))
	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(10)})
	require.ErrorIs(t, err, domain.ErrPoolPaused)
	require.NoError(t, f.gov.SetFundPaused(owner, fund, false))

	_, err = f.svc.SetMinDepositUSD(f.ctx, types.MinDepositInput{FundRef: types.FundRef{Fund: fund, Caller: manager}, MinDepositUSD: usd(100)})
	require.NoError(t, err)
	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(10)})
	require.ErrorIs(t, err, domain.ErrBelowMinimumDeposit)
	require.Equal(t, "economic", string(reason.Of(err).Class))
}

func TestDeposit_PrivateFundRequiresMembership(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	_, err := f.svc.AddMembers(f.ctx, types.MembersInput{FundRef: types.FundRef{Fund: fund, Caller: manager}, Members: []address.Address{alice}})
	require.NoError(t, err)

	f.deposit(t, fund, alice, usdcAmount(100))

	f.fund(t, fund, usdc, bob, usdcAmount(100))
	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: bob, Asset: usdc, Amount: usdcAmount(100)})
	require.ErrorIs(t, err, domain.ErrOnlyMembersAllowed)

	// holders of an approved collection token are members
	pass := address.MustParse("0x0000000000000000000000000000000000000b01")
	_, err = f.svc.SetMembershipCollection(f.ctx, types.MembershipCollectionInput{FundRef: types.FundRef{Fund: fund, Caller: manager}, Collection: pass, Enabled: true})
	require.ErrorIs(t, err, domain.ErrCollectionNotAllowed)
	require.NoError(t, f.gov.SetMembershipCollection(owner, pass, true))
	_, err = f.svc.SetMembershipCollection(f.ctx, types.MembershipCollectionInput{FundRef: types.FundRef{Fund: fund, Caller: manager}, Collection: pass, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, f.ledger.Mint(pass, bob, sdkmath.OneInt()))

	_, err = f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: bob, Asset: usdc, Amount: usdcAmount(100)})
	require.NoError(t, err)
}

func TestDeposit_InflationAttackLeavesVictimWhole(t *testing.T) {
	f := newFixture(t)
	attacker, victim := bob, alice
	fund := f.createFund(t, domain.FeeNumerators{})

	// smallest bootstrap the threshold allows, then a large donation
	f.deposit(t, fund, attacker, sdkmath.OneInt())
	require.NoError(t, f.ledger.Mint(usdc, attacker, usdcAmount(10_000)))
	require.NoError(t, f.ledger.Transfer(f.ctx, usdc, attacker, fund, usdcAmount(10_000)))

	receipt := f.deposit(t, fund, victim, usdcAmount(10_000))
	require.True(t, receipt.Shares.GTE(domain.MinLiquidity))
	require.Equal(t, "999999999900", receipt.Shares.String())

	f.pastCooldown(2000)
	attackerShares := f.load(t, fund).BalanceOf(attacker)
	_, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: attacker, Shares: attackerShares})
	require.NoError(t, err)
	_, err = f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: victim, Shares: receipt.Shares})
	require.NoError(t, err)

	principal := usdcAmount(10_000).AddRaw(1)
	require.True(t, f.balance(usdc, attacker).LTE(principal))
	require.Equal(t, usdcAmount(10_000).String(), f.balance(usdc, victim).String())
}

func TestDeposit_TooSmallMintIsRejected(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, sdkmath.OneInt())
	require.NoError(t, f.ledger.Mint(usdc, fund, usdcAmount(1_000_000)))

	// 1 unit against a fund worth a million dollars mints ~1 share
	f.fund(t, fund, usdc, bob, sdkmath.OneInt())
	_, err := f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: bob, Asset: usdc, Amount: sdkmath.OneInt()})
	require.ErrorIs(t, err, domain.ErrInvalidLiquidityMinted)
	require.True(t, f.load(t, fund).BalanceOf(bob).IsZero())
}

func TestDeposit_FailedPullRollsBack(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	require.NoError(t, f.ledger.Mint(usdc, alice, usdcAmount(100)))

	// no allowance for the fund
	_, err := f.svc.Deposit(f.ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(100)})
	require.Error(t, err)

	state := f.load(t, fund)
	require.True(t, state.Supply.IsZero())
	require.NotContains(t, f.recorder.Names(), "funds.fund.deposited")
}

func TestDeposit_IdempotencyKeyReplaysReceipt(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.fund(t, fund, usdc, alice, usdcAmount(200))
	input := types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(100), IdempotencyKey: "dep-1"}

	first, err := f.svc.Deposit(f.ctx, input)
	require.NoError(t, err)
	second, err := f.svc.Deposit(f.ctx, input)
	require.NoError(t, err)
	require.Equal(t, first.Shares.String(), second.Shares.String())
	require.Equal(t, usd(100).String(), f.load(t, fund).Supply.String())

	input.Amount = usdcAmount(50)
	_, err = f.svc.Deposit(f.ctx, input)
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

// gatedIdempotency holds the first lookup until a second lookup arrives or the
// wait runs out, so two retries overlap wherever the service allows it.
type gatedIdempotency struct {
	*fundmemory.IdempotencyStore
	calls  atomic.Int32
	second chan struct{}
}

func (g *gatedIdempotency) Get(ctx context.Context, key string) (*ports.IdempotencyRecord, error) {
	switch g.calls.Add(1) {
	case 1:
		select {
		case <-g.second:
		case <-time.After(100 * time.Millisecond):
		}
	case 2:
		close(g.second)
	}
	return g.IdempotencyStore.Get(ctx, key)
}

func TestDeposit_ConcurrentRetriesDepositOnce(t *testing.T) {
	f := newFixture(t)
	store := &gatedIdempotency{IdempotencyStore: fundmemory.NewIdempotencyStore(), second: make(chan struct{})}
	f.wire(store)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.fund(t, fund, usdc, alice, usdcAmount(200))
	input := types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(100), IdempotencyKey: "k1"}

	var wg sync.WaitGroup
	receipts := make([]*types.DepositReceipt, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipts[i], errs[i] = f.svc.Deposit(f.ctx, input)
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, receipts[0].Shares.String(), receipts[1].Shares.String())
	require.Equal(t, usdcAmount(100).String(), f.balance(usdc, alice).String())
	require.Equal(t, usd(100).String(), f.load(t, fund).Supply.String())
}

func TestDepositWithCustomCooldown(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.fund(t, fund, usdc, alice, usdcAmount(100))
	input := types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(100)}

	_, err := f.svc.DepositWithCustomCooldown(f.ctx, input)
	require.ErrorIs(t, err, domain.ErrOnlyCustomCooldown)

	require.NoError(t, f.gov.SetCustomCooldownCaller(owner, alice, time.Hour))
	receipt, err := f.svc.DepositWithCustomCooldown(f.ctx, input)
	require.NoError(t, err)
	require.Equal(t, time.Hour, receipt.Cooldown)

	view, err := f.svc.Holder(f.ctx, fund, alice)
	require.NoError(t, err)
	require.Equal(t, time.Hour, view.RemainingCooldown)
	f.clock.Advance(15 * time.Minute)
	view, err = f.svc.Holder(f.ctx, fund, alice)
	require.NoError(t, err)
	require.Equal(t, 45*time.Minute, view.RemainingCooldown)
}
