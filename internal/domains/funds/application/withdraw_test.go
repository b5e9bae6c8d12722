package application

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

func TestWithdraw_ProRataSliceOfEveryAsset(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))
	require.NoError(t, f.ledger.Mint(weth, fund, usd(1)))
	f.pastCooldown(2000)

	receipt, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Recipient: bob, Shares: usd(250)})
	require.NoError(t, err)

	require.Equal(t, usdcAmount(250).String(), f.balance(usdc, bob).String())
	require.Equal(t, sdkmath.NewIntWithDecimal(25, 16).String(), f.balance(weth, bob).String())
	require.Equal(t, usd(750).String(), receipt.ExpectedValue.String())
	require.Equal(t, usd(750).String(), receipt.ValueWithdrawn.String())
	require.Len(t, receipt.Assets, 2)
	require.False(t, receipt.Assets[0].External)

	state := f.load(t, fund)
	require.Equal(t, usd(750).String(), state.Supply.String())
	require.Equal(t, usd(750).String(), state.BalanceOf(alice).String())
	require.Equal(t, state.Supply.String(), state.TotalBalances().String())
}

func TestWithdraw_ConservesValue(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{Entry: 100})
	f.deposit(t, fund, bob, usdcAmount(500))
	receipt := f.deposit(t, fund, alice, usdcAmount(1000))
	f.pastCooldown(2000)

	_, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: receipt.Shares})
	require.NoError(t, err)
	require.True(t, f.balance(usdc, alice).LTE(usdcAmount(1000)))
	require.True(t, f.balance(usdc, alice).GTE(usdcAmount(989)))
}

func TestWithdraw_CooldownReportsWhenValid(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))

	_, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(1)})
	require.ErrorIs(t, err, domain.ErrCooldownActive)
	validAt, ok := reason.ValidAt(err)
	require.True(t, ok)
	require.Equal(t, t0.Add(24*time.Hour), validAt)

	f.clock.Set(validAt)
	_, err = f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(1)})
	require.NoError(t, err)
}

func TestWithdraw_SupplyThreshold(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))
	f.pastCooldown(2000)

	_, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(1000).SubRaw(1)})
	require.ErrorIs(t, err, domain.ErrBelowSupplyThreshold)

	_, err = f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(1001)})
	require.ErrorIs(t, err, domain.ErrInsufficientShares)

	_, err = f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(1000)})
	require.NoError(t, err)
	require.True(t, f.load(t, fund).Supply.IsZero())
	require.Equal(t, usdcAmount(1000).String(), f.balance(usdc, alice).String())
}

// lossyGuard values a position it cannot release on withdrawal.
type lossyGuard struct{}

const tagLossy guarddomain.Tag = "lossy"

func (lossyGuard) Tag() guarddomain.Tag { return tagLossy }

func (lossyGuard) Balance(context.Context, address.Address, address.Address) (sdkmath.Int, error) {
	return usd(1000), nil
}

func (lossyGuard) Value(context.Context, address.Address, address.Address) (sdkmath.Int, error) {
	return usd(1000), nil
}

func (lossyGuard) WithdrawProcessing(context.Context, guarddomain.WithdrawRequest) (guarddomain.WithdrawResult, error) {
	return guarddomain.WithdrawResult{}, nil
}

func TestWithdrawSafe_FailsOnSlippageAndRollsBack(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))

	position := address.MustParse("0x0000000000000000000000000000000000005001")
	require.NoError(t, f.gov.SetAssetGuard(owner, lossyGuard{}))
	require.NoError(t, f.gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: position, Tag: tagLossy, Decimals: 18}))
	_, err := f.svc.ChangeAssets(f.ctx, types.ChangeAssetsInput{
		FundRef: types.FundRef{Fund: fund, Caller: manager},
		Add:     []domain.SupportedAsset{{Asset: position}},
	})
	require.NoError(t, err)
	f.pastCooldown(2000)

	input := types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(500)}
	_, err = f.svc.WithdrawSafe(f.ctx, input, 100)
	require.ErrorIs(t, err, domain.ErrHighWithdrawSlippage)
	require.Equal(t, usd(1000).String(), f.load(t, fund).Supply.String())
	require.True(t, f.balance(usdc, alice).IsZero())

	receipt, err := f.svc.Withdraw(f.ctx, input)
	require.NoError(t, err)
	require.Equal(t, usd(1000).String(), receipt.ExpectedValue.String())
	require.Equal(t, usd(500).String(), receipt.ValueWithdrawn.String())
}

func TestTransfer_CooldownMembershipAndExemptions(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))

	err := f.svc.Transfer(f.ctx, types.TransferInput{Fund: fund, From: alice, To: bob, Shares: usd(10)})
	require.ErrorIs(t, err, domain.ErrCooldownActive)

	require.NoError(t, f.gov.SetCooldownExempt(owner, bob, true))
	require.NoError(t, f.svc.Transfer(f.ctx, types.TransferInput{Fund: fund, From: alice, To: bob, Shares: usd(10)}))

	_, err = f.svc.AddMembers(f.ctx, types.MembersInput{FundRef: types.FundRef{Fund: fund, Caller: manager}, Members: []address.Address{alice}})
	require.NoError(t, err)
	f.pastCooldown(2000)
	err = f.svc.Transfer(f.ctx, types.TransferInput{Fund: fund, From: alice, To: trader, Shares: usd(10)})
	require.ErrorIs(t, err, domain.ErrOnlyMembersAllowed)

	state := f.load(t, fund)
	require.Equal(t, usd(990).String(), state.BalanceOf(alice).String())
	require.Equal(t, usd(10).String(), state.BalanceOf(bob).String())
	require.Equal(t, state.Supply.String(), state.TotalBalances().String())
}

func TestWithdraw_ReentrantDepositFromPayoutHookFails(t *testing.T) {
	f := newFixture(t)
	fund := f.createFund(t, domain.FeeNumerators{})
	f.deposit(t, fund, alice, usdcAmount(1000))
	f.fund(t, fund, usdc, alice, usdcAmount(10))
	f.pastCooldown(2000)

	var reentered error
	f.ledger.OnReceive(alice, func(ctx context.Context, _, _ address.Address, _ sdkmath.Int) {
		_, reentered = f.svc.Deposit(ctx, types.DepositInput{Fund: fund, Depositor: alice, Asset: usdc, Amount: usdcAmount(10)})
	})

	_, err := f.svc.Withdraw(f.ctx, types.WithdrawInput{Fund: fund, Holder: alice, Shares: usd(100)})
	require.NoError(t, err)
	require.ErrorIs(t, reentered, domain.ErrReentrantCall)
	require.Equal(t, usd(900).String(), f.load(t, fund).Supply.String())
}
