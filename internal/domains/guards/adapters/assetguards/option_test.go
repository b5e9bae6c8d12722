package assetguards

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/markets"
	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var optionVault = address.MustParse("0x0000000000000000000000000000000000004001")

func openCall(t *testing.T, f *fixture) *markets.OptionVault {
	t.Helper()
	f.register(t, optionVault, domain.TagOption, 18)
	vault := markets.NewOptionVault(optionVault, f.ledger, f.oracle, units(1, 18))
	vault.Open(fund, ports.OptionPosition{
		Underlying: weth, Settlement: dai, Strike: usd(1800), Amount: units(10, 18), Call: true,
	})
	return vault
}

func TestOptionIntrinsicValue(t *testing.T) {
	f := newFixture(t)
	vault := openCall(t, f)
	g := NewOption(vault, f.oracle, f.registry, 0)

	value, err := g.Value(f.ctx, fund, optionVault)
	require.NoError(t, err)
	assert.Equal(t, usd(2000).String(), value.String())

	f.setPrice(weth, usd(1500))
	value, err = g.Value(f.ctx, fund, optionVault)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestOptionProRataClose(t *testing.T) {
	f := newFixture(t)
	vault := openCall(t, f)
	g := NewOption(vault, f.oracle, f.registry, 0)
	num, den := half()

	res, err := g.WithdrawProcessing(f.ctx, domain.WithdrawRequest{Fund: fund, Asset: optionVault, PortionNumerator: num, PortionDenominator: den})
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Equal(t, dai, res.Assets[0].Asset)
	assert.Equal(t, usd(1000).String(), res.Assets[0].Amount.String())

	pos, _ := vault.Position(f.ctx, optionVault, fund)
	assert.Equal(t, units(5, 18).String(), pos.Amount.String())
}

func TestOptionClosesFullyWhenSliceBelowMinimum(t *testing.T) {
	f := newFixture(t)
	vault := openCall(t, f)
	g := NewOption(vault, f.oracle, f.registry, 0)

	res, err := g.WithdrawProcessing(f.ctx, domain.WithdrawRequest{
		Fund: fund, Asset: optionVault,
		PortionNumerator: sdkmath.NewInt(1), PortionDenominator: sdkmath.NewInt(20),
	})
	require.NoError(t, err)
	require.Len(t, res.Assets, 1)
	assert.Equal(t, usd(100).String(), res.Assets[0].Amount.String())

	pos, _ := vault.Position(f.ctx, optionVault, fund)
	assert.True(t, pos.Amount.IsZero())
	assert.Equal(t, usd(2000).String(), f.balance(dai, fund).String())
}
