package markets

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	usdc   = address.MustParse("0x00000000000000000000000000000000000000c1")
	weth   = address.MustParse("0x00000000000000000000000000000000000000e1")
	lp     = address.MustParse("0x0000000000000000000000000000000000006001")
	fund   = address.MustParse("0x00000000000000000000000000000000000f0001")
	pool   = address.MustParse("0x0000000000000000000000000000000000002001")
	perp   = address.MustParse("0x0000000000000000000000000000000000003001")
	stake  = address.MustParse("0x0000000000000000000000000000000000005a4e")
	router = address.MustParse("0x0000000000000000000000000000000000000501")
	vault  = address.MustParse("0x0000000000000000000000000000000000004001")
)

func TestCall_TruncatedArgumentsAreRejected(t *testing.T) {
	ledger := tokens.NewLedger()
	cases := map[string]struct {
		target interface {
			Call(ctx context.Context, market, caller address.Address, data []byte) error
		}
		data []byte
	}{
		"swap missing amounts": {
			target: NewSwapRouter(router, ledger, nil, nil, 30),
			data:   calldata.NewCall("swapExactIn(address,address,uint256,uint256,address)").Address(usdc).Address(weth).Bytes(),
		},
		"lending missing recipient": {
			target: NewLendingPool(pool, ledger, nil, nil),
			data:   calldata.NewCall("supply(address,uint256,address)").Address(usdc).Uint(sdkmath.NewInt(1)).Bytes(),
		},
		"stake missing amount": {
			target: NewStaking(stake, ledger),
			data:   calldata.NewCall("stake(address,uint256)").Address(lp).Bytes(),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.target.Call(context.Background(), address.Zero, fund, tc.data)
			assert.ErrorIs(t, err, calldata.ErrArgument)
		})
	}
}

func TestLendingPool_SnapshotRestoresAccounts(t *testing.T) {
	ctx := context.Background()
	ledger := tokens.NewLedger()
	require.NoError(t, ledger.Mint(usdc, fund, sdkmath.NewInt(300)))
	p := NewLendingPool(pool, ledger, nil, nil)
	supply := func(amount int64) {
		data := calldata.NewCall("supply(address,uint256,address)").Address(usdc).Uint(sdkmath.NewInt(amount)).Address(fund).Bytes()
		require.NoError(t, p.Call(ctx, pool, fund, data))
	}
	supply(100)

	restore := p.Snapshot()
	supply(50)
	restore()

	pos, err := p.Position(ctx, pool, fund)
	require.NoError(t, err)
	require.Len(t, pos.Collateral, 1)
	assert.Equal(t, "100", pos.Collateral[0].Amount.String())
}

func TestPerpExchange_SnapshotCopiesPositions(t *testing.T) {
	ctx := context.Background()
	e := NewPerpExchange(tokens.NewLedger(), nil, nil, PerpSpec{Market: perp, MarginAsset: usdc, IndexAsset: weth})
	e.SetFunding(perp, fund, sdkmath.NewInt(7))

	restore := e.Snapshot()
	e.SetFunding(perp, fund, sdkmath.NewInt(-40))
	restore()

	pos, err := e.Position(ctx, perp, fund)
	require.NoError(t, err)
	assert.Equal(t, "7", pos.Funding.String())
}

func TestPoolsStakingAndVault_SnapshotsRestore(t *testing.T) {
	ctx := context.Background()
	ledger := tokens.NewLedger()
	require.NoError(t, ledger.Mint(lp, fund, sdkmath.NewInt(10)))

	pools := NewPools()
	reserves := ports.PoolReserves{Token0: usdc, Token1: weth, Reserve0: sdkmath.NewInt(1), Reserve1: sdkmath.NewInt(1), TotalSupply: sdkmath.NewInt(1)}
	pools.SetReserves(lp, reserves)
	staking := NewStaking(stake, ledger)
	options := NewOptionVault(vault, ledger, nil, sdkmath.ZeroInt())

	restores := []func(){pools.Snapshot(), staking.Snapshot(), options.Snapshot()}
	pools.SetReserves(lp, ports.PoolReserves{TotalSupply: sdkmath.NewInt(99)})
	require.NoError(t, staking.Stake(ctx, lp, fund, sdkmath.NewInt(4)))
	options.Open(fund, ports.OptionPosition{Underlying: weth, Settlement: usdc, Strike: sdkmath.NewInt(1), Amount: sdkmath.NewInt(2)})
	for _, restore := range restores {
		restore()
	}

	got, err := pools.Reserves(ctx, lp)
	require.NoError(t, err)
	assert.Equal(t, "1", got.TotalSupply.String())
	staked, err := staking.Staked(ctx, lp, fund)
	require.NoError(t, err)
	assert.True(t, staked.IsZero())
	pos, err := options.Position(ctx, vault, fund)
	require.NoError(t, err)
	assert.True(t, pos.Amount.IsZero())
}
