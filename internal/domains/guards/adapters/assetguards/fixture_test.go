package assetguards

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/guards/application"
	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	pricingapp "github.com/Apurer/fund-ledger/internal/domains/pricing/application"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

var (
	fund = address.MustParse("0x00000000000000000000000000000000000f0001")
	usdc = address.MustParse("0x00000000000000000000000000000000000000c1")
	weth = address.MustParse("0x00000000000000000000000000000000000000e1")
	dai  = address.MustParse("0x00000000000000000000000000000000000000d1")
	lp   = address.MustParse("0x0000000000000000000000000000000000001001")
	t0   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx      context.Context
	clock    *clock.Manual
	oracle   *pricingapp.Oracle
	prices   *feeds.Manual
	registry *application.Registry
	ledger   *tokens.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(t0)
	f := &fixture{
		ctx:      context.Background(),
		clock:    clk,
		oracle:   pricingapp.NewOracle(clk, pricingapp.WithMaxAge(24*time.Hour)),
		prices:   feeds.NewManual("test"),
		registry: application.NewRegistry(),
		ledger:   tokens.NewLedger(),
	}
	f.register(t, usdc, domain.TagToken, 6)
	f.register(t, weth, domain.TagToken, 18)
	f.register(t, dai, domain.TagToken, 18)
	f.setPrice(usdc, usd(1))
	f.setPrice(weth, usd(2000))
	f.setPrice(dai, usd(1))
	return f
}

func (f *fixture) register(t *testing.T, asset address.Address, tag domain.Tag, decimals uint8) {
	t.Helper()
	require.NoError(t, f.registry.RegisterAsset(domain.AssetBinding{Asset: asset, Tag: tag, Decimals: decimals}))
}

func (f *fixture) setPrice(asset address.Address, price sdkmath.Int) {
	f.prices.Push(asset, price, f.clock.Now())
	f.oracle.SetFeeds(asset, f.prices)
}

func (f *fixture) mint(t *testing.T, asset, holder address.Address, amount sdkmath.Int) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(asset, holder, amount))
}

func (f *fixture) balance(asset, holder address.Address) sdkmath.Int {
	b, _ := f.ledger.BalanceOf(f.ctx, asset, holder)
	return b
}

func usd(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, 18) }

func units(n int64, decimals int) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, decimals) }

func half() (sdkmath.Int, sdkmath.Int) { return sdkmath.NewInt(1), sdkmath.NewInt(2) }
