package assetguards

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/markets"
	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var perpMarket = address.MustParse("0x0000000000000000000000000000000000003001")

func openLong(t *testing.T, f *fixture) *markets.PerpExchange {
	t.Helper()
	f.register(t, perpMarket, domain.TagPerpMargin, 18)
	ex := markets.NewPerpExchange(f.ledger, f.oracle, f.registry, markets.PerpSpec{
		Market: perpMarket, MarginAsset: usdc, IndexAsset: weth, MinMargin: units(100, 6),
	})
	f.mint(t, usdc, fund, units(1000, 6))
	require.NoError(t, ex.Call(f.ctx, perpMarket, fund, calldata.NewCall("transferMargin(int256)").Int(units(1000, 6)).Bytes()))
	require.NoError(t, ex.Call(f.ctx, perpMarket, fund, calldata.NewCall("modifyPosition(int256)").Int(units(1, 18)).Bytes()))
	return ex
}

func TestPerpValueIncludesTWAPPnLAndFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ex := openLong(t, f)
	g := NewPerpMargin(ex, f.oracle, f.registry, 0)

	f.setPrice(weth, usd(2100))
	value, err := g.Value(f.ctx, fund, perpMarket)
	require.NoError(t, err)
	assert.Equal(t, usd(1100).String(), value.String())

	ex.SetFunding(perpMarket, fund, units(-50, 6))
	value, err = g.Value(f.ctx, fund, perpMarket)
	require.NoError(t, err)
	assert.Equal(t, usd(1050).String(), value.String())

	f.setPrice(weth, usd(900))
	value, err = g.Value(f.ctx, fund, perpMarket)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestPerpPartialWithdrawKeepsPosition(t *testing.T) {
	f := newFixture(t)
	ex := openLong(t, f)
	g := NewPerpMargin(ex, f.oracle, f.registry, 0)
	f.setPrice(weth, usd(2100))
	num, den := half()

	res, err := g.WithdrawProcessing(f.ctx, domain.WithdrawRequest{Fund: fund, Asset: perpMarket, PortionNumerator: num, PortionDenominator: den})
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Equal(t, usdc, res.Assets[0].Asset)
	assert.Equal(t, units(550, 6).String(), res.Assets[0].Amount.String())
	assert.Equal(t, usd(550).String(), res.Value().String())
	assert.Equal(t, units(550, 6).String(), f.balance(usdc, fund).String())

	pos, err := ex.Position(f.ctx, perpMarket, fund)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(5, 17).String(), pos.Size.String())
	assert.Equal(t, units(550, 6).String(), pos.Margin.String())
}

func TestPerpClosesFullyBelowMinimumMargin(t *testing.T) {
	f := newFixture(t)
	ex := openLong(t, f)
	g := NewPerpMargin(ex, f.oracle, f.registry, 0)
	f.setPrice(weth, usd(2100))

	res, err := g.WithdrawProcessing(f.ctx, domain.WithdrawRequest{
		Fund: fund, Asset: perpMarket,
		PortionNumerator: sdkmath.NewInt(19), PortionDenominator: sdkmath.NewInt(20),
	})
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Equal(t, units(1045, 6).String(), res.Assets[0].Amount.String())

	pos, err := ex.Position(f.ctx, perpMarket, fund)
	require.NoError(t, err)
	assert.True(t, pos.Size.IsZero())
	assert.True(t, pos.Margin.IsZero())
	// the remainder of the closed position stays with the fund
	assert.Equal(t, units(1100, 6).String(), f.balance(usdc, fund).String())
}
