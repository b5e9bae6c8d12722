package tokens

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	usdc  = address.MustParse("0x00000000000000000000000000000000000000c1")
	alice = address.MustParse("0x000000000000000000000000000000000000a11c")
	bob   = address.MustParse("0x0000000000000000000000000000000000000b0b")
)

func TestTransferAndSnapshot(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Mint(usdc, alice, sdkmath.NewInt(100)))

	restore := l.Snapshot()
	require.NoError(t, l.Transfer(ctx, usdc, alice, bob, sdkmath.NewInt(40)))
	bal, _ := l.BalanceOf(ctx, usdc, bob)
	assert.Equal(t, int64(40), bal.Int64())

	err := l.Transfer(ctx, usdc, bob, alice, sdkmath.NewInt(41))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	restore()
	bal, _ = l.BalanceOf(ctx, usdc, bob)
	assert.True(t, bal.IsZero())
}

func TestApproveCallAndTransferFrom(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Mint(usdc, alice, sdkmath.NewInt(100)))

	payload := calldata.NewCall("approve(address,uint256)").Address(bob).Uint(sdkmath.NewInt(30)).Bytes()
	require.NoError(t, l.Call(ctx, usdc, alice, payload))
	assert.Equal(t, int64(30), l.Allowance(usdc, alice, bob).Int64())

	assert.ErrorIs(t, l.TransferFrom(ctx, usdc, bob, alice, bob, sdkmath.NewInt(31)), ErrInsufficientAllowance)
	require.NoError(t, l.TransferFrom(ctx, usdc, bob, alice, bob, sdkmath.NewInt(30)))
	assert.True(t, l.Allowance(usdc, alice, bob).IsZero())
}

func TestReceiveHookRunsAfterTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	require.NoError(t, l.Mint(usdc, alice, sdkmath.NewInt(10)))
	var seen sdkmath.Int
	l.OnReceive(bob, func(ctx context.Context, _, _ address.Address, amount sdkmath.Int) {
		seen, _ = l.BalanceOf(ctx, usdc, bob)
	})
	require.NoError(t, l.Transfer(ctx, usdc, alice, bob, sdkmath.NewInt(10)))
	assert.Equal(t, int64(10), seen.Int64())
}
