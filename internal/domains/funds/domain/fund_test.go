package domain

import (
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	fundAddr = address.MustParse("0x0000000000000000000000000000000000000f00")
	manager  = address.MustParse("0x0000000000000000000000000000000000000001")
	alice    = address.MustParse("0x0000000000000000000000000000000000000002")
	bob      = address.MustParse("0x0000000000000000000000000000000000000003")
	usdc     = address.MustParse("0x00000000000000000000000000000000000000a1")
	weth     = address.MustParse("0x00000000000000000000000000000000000000a2")
	wbtc     = address.MustParse("0x00000000000000000000000000000000000000a3")
	link     = address.MustParse("0x00000000000000000000000000000000000000a4")
)

func newTestFund(t *testing.T) *Fund {
	t.Helper()
	f, err := NewFund(fundAddr, manager, " Alpha ", "ALP", []SupportedAsset{
		{Asset: usdc, IsDeposit: true},
		{Asset: weth},
	}, FeeNumerators{Performance: 1000, Management: 100}, epoch)
	require.NoError(t, err)
	return f
}

func TestNewFund_Validation(t *testing.T) {
	f := newTestFund(t)
	require.Equal(t, "Alpha", f.Name)
	require.Equal(t, SchemaCurrent, f.SchemaVersion)
	require.Equal(t, Precision.String(), f.Fees.TokenPriceAtLastFeeMint.String())
	require.Equal(t, epoch, f.Fees.LastFeeMintTime)

	_, err := NewFund(fundAddr, manager, "x", "X", []SupportedAsset{{Asset: usdc, IsDeposit: true}, {Asset: usdc}}, FeeNumerators{}, epoch)
	require.ErrorIs(t, err, ErrDuplicateAsset)

	_, err = NewFund(fundAddr, manager, "x", "X", []SupportedAsset{{Asset: usdc}}, FeeNumerators{}, epoch)
	require.ErrorIs(t, err, ErrNoDepositAsset)

	_, err = NewFund(fundAddr, address.Zero, "x", "X", []SupportedAsset{{Asset: usdc, IsDeposit: true}}, FeeNumerators{}, epoch)
	require.ErrorIs(t, err, ErrInvalidFund)
}

func TestFund_SharesConserveSupply(t *testing.T) {
	f := newTestFund(t)
	f.Mint(alice, sdkmath.NewInt(500))
	f.Mint(bob, sdkmath.NewInt(300))
	require.NoError(t, f.Move(alice, bob, sdkmath.NewInt(200)))
	require.NoError(t, f.Burn(bob, sdkmath.NewInt(100)))

	require.Equal(t, int64(700), f.Supply.Int64())
	require.Equal(t, f.Supply.String(), f.TotalBalances().String())
	require.ErrorIs(t, f.Burn(alice, sdkmath.NewInt(301)), ErrInsufficientShares)
	require.ErrorIs(t, f.Move(alice, bob, sdkmath.NewInt(301)), ErrInsufficientShares)
}

func TestFund_AddRemoveAssetsKeepsOrder(t *testing.T) {
	f := newTestFund(t)
	require.NoError(t, f.AddAsset(SupportedAsset{Asset: wbtc}, 4))
	require.NoError(t, f.AddAsset(SupportedAsset{Asset: link}, 4))
	require.ErrorIs(t, f.AddAsset(SupportedAsset{Asset: address.MustParse("0x00000000000000000000000000000000000000a5")}, 4), ErrMaxSupportedAssets)

	// updating an existing entry does not count against the limit
	require.NoError(t, f.AddAsset(SupportedAsset{Asset: weth, IsDeposit: true}, 4))
	require.True(t, f.IsDepositAsset(weth))

	require.NoError(t, f.RemoveAsset(weth))
	require.Equal(t, []address.Address{usdc, link, wbtc}, f.AssetAddresses())

	require.NoError(t, f.RemoveAsset(usdc))
	require.Equal(t, []address.Address{wbtc, link}, f.AssetAddresses())
	require.ErrorIs(t, f.RemoveAsset(usdc), ErrAssetNotSupported)
	require.False(t, f.HasDepositAsset())
}

func TestFund_Membership(t *testing.T) {
	f := newTestFund(t)
	require.False(t, f.IsPrivate())

	f.AddMembers(alice, address.Zero)
	require.True(t, f.IsPrivate())
	require.True(t, f.IsListedMember(alice))
	require.True(t, f.IsListedMember(manager))
	require.False(t, f.IsListedMember(bob))
	require.Equal(t, []address.Address{alice}, f.MemberList())

	f.RemoveMembers(alice)
	require.False(t, f.IsPrivate())

	f.SetMembershipCollection(link, true)
	f.SetMembershipCollection(link, true)
	require.Len(t, f.MembershipCollections, 1)
	require.True(t, f.IsPrivate())
	f.SetMembershipCollection(link, false)
	require.Empty(t, f.MembershipCollections)
}

func TestFund_CheckCooldown(t *testing.T) {
	f := newTestFund(t)
	f.Mint(alice, sdkmath.NewInt(10))
	f.RecordDeposit(alice, 3600, epoch)

	err := f.CheckCooldown(alice, epoch.Add(59*time.Minute))
	require.ErrorIs(t, err, ErrCooldownActive)
	require.NoError(t, f.CheckCooldown(alice, epoch.Add(time.Hour)))
	require.NoError(t, f.CheckCooldown(bob, epoch))
}

func TestFund_CloneIsDeep(t *testing.T) {
	f := newTestFund(t)
	f.Mint(alice, sdkmath.NewInt(10))
	f.AddMembers(bob)
	f.Raise(FundCreated{BaseEvent: BaseEvent{Timestamp: epoch, Fund: fundAddr}})

	c := f.Clone()
	c.Mint(alice, sdkmath.NewInt(5))
	c.AddMembers(alice)
	c.Assets[0].IsDeposit = false

	require.Equal(t, int64(10), f.BalanceOf(alice).Int64())
	require.False(t, f.Members[alice])
	require.True(t, f.Assets[0].IsDeposit)
	require.Empty(t, c.Events())
	require.Len(t, f.Events(), 1)
}
