package ledger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/contractguards"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

const sampleConfig = `
governance:
  owner: "0x000000000000000000000000000000000000000a"
  max_supported_assets: 5
  max_price_age: 2h
  default_cooldown: 12h
  default_min_deposit_usd: "10"
  cooldown_exempt: ["0x00000000000000000000000000000000000000ee"]
  custom_cooldown_callers:
    - caller: "0x00000000000000000000000000000000000000cc"
      cooldown: 1h
  protocol_fee:
    numerator: 5
    denominator: 100
    treasury: "0x00000000000000000000000000000000000000fe"
assets:
  - address: "0x00000000000000000000000000000000000000c1"
    symbol: USDC
    decimals: 6
    feed: {kind: peg}
  - address: "0x00000000000000000000000000000000000000e1"
    symbol: WETH
    decimals: 18
    feed: {kind: static, price: "2000"}
  - address: "0x00000000000000000000000000000000000000d1"
    symbol: DAI
    decimals: 18
    feed: {kind: manual, price: "1.0001"}
swap_routers:
  - address: "0x0000000000000000000000000000000000000501"
    fee_bps: 30
    slippage_bps: 100
lending_pools:
  - address: "0x0000000000000000000000000000000000002001"
perp_markets:
  - address: "0x0000000000000000000000000000000000003001"
    margin_asset: "0x00000000000000000000000000000000000000c1"
    index_asset: "0x00000000000000000000000000000000000000e1"
    min_margin: "100"
    max_positions: 1
  - address: "0x0000000000000000000000000000000000003002"
    margin_asset: "0x00000000000000000000000000000000000000c1"
    index_asset: "0x00000000000000000000000000000000000000e1"
    min_margin: "100"
    max_positions: 1
lp_staking: "0x0000000000000000000000000000000000005a4e"
lp_pools:
  - address: "0x0000000000000000000000000000000000006001"
    symbol: USDC-WETH
    token0: "0x00000000000000000000000000000000000000c1"
    token1: "0x00000000000000000000000000000000000000e1"
    reserve0: "200000"
    reserve1: "100"
    total_supply: "1000"
option_vaults:
  - address: "0x0000000000000000000000000000000000004001"
    minimum: "0.1"
balances:
  - asset: "0x00000000000000000000000000000000000000c1"
    holder: "0x0000000000000000000000000000000000000002"
    amount: "1000"
`

var (
	owner   = address.MustParse("0x000000000000000000000000000000000000000a")
	manager = address.MustParse("0x0000000000000000000000000000000000000001")
	alice   = address.MustParse("0x0000000000000000000000000000000000000002")
	usdc    = address.MustParse("0x00000000000000000000000000000000000000c1")
	weth    = address.MustParse("0x00000000000000000000000000000000000000e1")
	dai     = address.MustParse("0x00000000000000000000000000000000000000d1")
	router  = address.MustParse("0x0000000000000000000000000000000000000501")
	lending = address.MustParse("0x0000000000000000000000000000000000002001")
	perpA   = address.MustParse("0x0000000000000000000000000000000000003001")
	perpB   = address.MustParse("0x0000000000000000000000000000000000003002")
	lpToken = address.MustParse("0x0000000000000000000000000000000000006001")
	vault   = address.MustParse("0x0000000000000000000000000000000000004001")
)

func parseSample(t *testing.T) *File {
	t.Helper()
	f := &File{}
	require.NoError(t, Parse([]byte(sampleConfig), f))
	return f
}

func TestSettingsFromFile(t *testing.T) {
	s, err := parseSample(t).Settings()
	require.NoError(t, err)

	assert.Equal(t, owner, s.Owner)
	assert.Equal(t, 5, s.MaxSupportedAssets)
	assert.Equal(t, 2*time.Hour, s.MaxPriceAge)
	assert.Equal(t, 12*time.Hour, s.DefaultCooldown)
	assert.Equal(t, sdkmath.NewIntWithDecimal(10, 18).String(), s.DefaultMinDepositUSD.String())
	assert.True(t, s.CooldownExempt[address.MustParse("0x00000000000000000000000000000000000000ee")])
	assert.Equal(t, time.Hour, s.CustomCooldowns[address.MustParse("0x00000000000000000000000000000000000000cc")])
	assert.Equal(t, uint64(5), s.Protocol.Numerator)
	assert.Equal(t, address.MustParse("0x00000000000000000000000000000000000000fe"), s.Protocol.Treasury)
	// fee limits fall back to the defaults
	assert.Equal(t, 28*24*time.Hour, s.Fees.IncreaseDelay)
}

func TestValidateRejectsBadReferences(t *testing.T) {
	cases := map[string]func(f *File){
		"missing owner": func(f *File) { f.Governance.Owner = "" },
		"unknown feed":  func(f *File) { f.Assets[0].Feed.Kind = "chainlink" },
		"static without price": func(f *File) {
			f.Assets[1].Feed.Price = ""
		},
		"balance of unconfigured asset": func(f *File) {
			f.Balances[0].Asset = "0x00000000000000000000000000000000000000b1"
		},
		"router fee out of range": func(f *File) { f.SwapRouters[0].FeeBps = 10000 },
		"http feed without url":   func(f *File) { f.Assets[2].Feed.Kind = FeedHTTP },
		"perp margin not an asset": func(f *File) {
			f.PerpMarkets[0].MarginAsset = "0x00000000000000000000000000000000000000b1"
		},
		"negative max positions": func(f *File) { f.PerpMarkets[1].MaxPositions = -1 },
		"perp market reuses a pool address": func(f *File) {
			f.PerpMarkets[0].Address = f.LendingPools[0].Address
		},
		"lp pool with one token": func(f *File) { f.LPPools[0].Token1 = f.LPPools[0].Token0 },
		"lp pool without supply": func(f *File) { f.LPPools[0].TotalSupply = "0" },
		"lp reserve not a number": func(f *File) { f.LPPools[0].Reserve1 = "lots" },
		"option minimum negative": func(f *File) { f.OptionVaults[0].Minimum = "-1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := parseSample(t)
			mutate(f)
			assert.Error(t, f.Validate())
		})
	}
}

func TestBuildWiresGuardsFeedsAndBalances(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sys, err := Build(parseSample(t), Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	ctx := context.Background()

	binding, err := sys.Registry.Binding(usdc)
	require.NoError(t, err)
	assert.Equal(t, guarddomain.TagToken, binding.Tag)
	binding, err = sys.Registry.Binding(lending)
	require.NoError(t, err)
	assert.Equal(t, guarddomain.TagLending, binding.Tag)
	_, ok := sys.Registry.ContractGuard(router)
	assert.True(t, ok)

	quote, err := sys.Oracle.Price(ctx, weth)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(2000, 18).String(), quote.Price.String())
	quote, err = sys.Oracle.Price(ctx, dai)
	require.NoError(t, err)
	assert.Equal(t, "1000100000000000000", quote.Price.String())

	balance, err := sys.Tokens.BalanceOf(ctx, usdc, alice)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1000, 6).String(), balance.String())
}

func TestBuildWiresPositionMarkets(t *testing.T) {
	sys := buildSample(t)
	for asset, tag := range map[address.Address]guarddomain.Tag{
		perpA:   guarddomain.TagPerpMargin,
		perpB:   guarddomain.TagPerpMargin,
		lpToken: guarddomain.TagLPShare,
		vault:   guarddomain.TagOption,
	} {
		guard, binding, err := sys.Registry.AssetGuard(asset)
		require.NoError(t, err)
		assert.Equal(t, tag, binding.Tag)
		assert.Equal(t, tag, guard.Tag())
	}
	_, ok := sys.Registry.ContractGuard(perpA)
	assert.True(t, ok)
	_, ok = sys.Registry.ContractGuard(perpB)
	assert.True(t, ok)
}

func TestBuiltSystemValuesLPAndOptionHoldings(t *testing.T) {
	sys := buildSample(t)
	ctx := context.Background()
	fund := createSampleFund(t, sys, lpToken, vault)
	depositUSDC(t, sys, fund, 1000)

	// fair reserves are 2*sqrt(200000*200000) USD over 1000 LP tokens
	require.NoError(t, sys.Tokens.Mint(lpToken, fund, sdkmath.NewIntWithDecimal(1, 18)))
	held, ok := sys.OptionVaults.Vault(vault)
	require.True(t, ok)
	held.Open(fund, guardports.OptionPosition{
		Underlying: weth,
		Settlement: usdc,
		Strike:     sdkmath.NewIntWithDecimal(1500, 18),
		Amount:     sdkmath.NewIntWithDecimal(1, 18),
		Call:       true,
	})

	summary, err := sys.Service.FundSummary(ctx, fund)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1000+400+500, 18).String(), summary.TotalValue.String())
}

func TestBuiltSystemRevertsPositionOverTheLimit(t *testing.T) {
	sys := buildSample(t)
	ctx := context.Background()
	fund := createSampleFund(t, sys, perpA, perpB)
	depositUSDC(t, sys, fund, 1000)

	execute := func(target address.Address, sig string, v sdkmath.Int) error {
		_, err := sys.Service.Execute(ctx, types.ExecuteInput{Fund: fund, Caller: manager, Target: target, Data: calldata.NewCall(sig).Int(v).Bytes()})
		return err
	}
	margin := sdkmath.NewIntWithDecimal(400, 6)
	size := sdkmath.NewIntWithDecimal(1, 17)
	require.NoError(t, execute(perpA, contractguards.SigTransferMargin, margin))
	require.NoError(t, execute(perpA, contractguards.SigModifyPosition, size))
	require.NoError(t, execute(perpB, contractguards.SigTransferMargin, margin))

	err := execute(perpB, contractguards.SigModifyPosition, size)
	require.ErrorIs(t, err, guarddomain.ErrMaxPositions)

	pos, err := sys.Perps.Position(ctx, perpB, fund)
	require.NoError(t, err)
	assert.True(t, pos.Size.IsZero())
	assert.Equal(t, margin.String(), pos.Margin.String())
}

func buildSample(t *testing.T) *System {
	t.Helper()
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sys, err := Build(parseSample(t), Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	return sys
}

func createSampleFund(t *testing.T, sys *System, extra ...address.Address) address.Address {
	t.Helper()
	assets := []domain.SupportedAsset{{Asset: usdc, IsDeposit: true}, {Asset: weth}}
	for _, a := range extra {
		assets = append(assets, domain.SupportedAsset{Asset: a})
	}
	created, err := sys.Service.CreateFund(context.Background(), types.CreateFundInput{
		Manager: manager,
		Name:    "Beta",
		Symbol:  "BET",
		Assets:  assets,
	})
	require.NoError(t, err)
	return created.Entity.Address
}

func depositUSDC(t *testing.T, sys *System, fund address.Address, whole int64) {
	t.Helper()
	amount := sdkmath.NewIntWithDecimal(whole, 6)
	sys.Tokens.Approve(usdc, alice, fund, amount)
	_, err := sys.Service.Deposit(context.Background(), types.DepositInput{Fund: fund, Depositor: alice, Recipient: alice, Asset: usdc, Amount: amount})
	require.NoError(t, err)
}

func TestBuiltSystemRunsDepositAndSweep(t *testing.T) {
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sys, err := Build(parseSample(t), Options{Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	ctx := context.Background()

	created, err := sys.Service.CreateFund(ctx, types.CreateFundInput{
		Manager: manager,
		Name:    "Alpha",
		Symbol:  "ALP",
		Assets:  []domain.SupportedAsset{{Asset: usdc, IsDeposit: true}, {Asset: weth}},
	})
	require.NoError(t, err)
	fund := created.Entity.Address

	amount := sdkmath.NewIntWithDecimal(1000, 6)
	sys.Tokens.Approve(usdc, alice, fund, amount)
	_, err = sys.Service.Deposit(ctx, types.DepositInput{Fund: fund, Depositor: alice, Recipient: alice, Asset: usdc, Amount: amount})
	require.NoError(t, err)

	summary, err := sys.Service.FundSummary(ctx, fund)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(1000, 18).String(), summary.TotalValue.String())

	result, err := SweepManagerFees(ctx, sys.Service, sys.Service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Funds)
	assert.Zero(t, result.Failed)

	require.NoError(t, sys.Governance.SetFundPaused(owner, fund, true))
	result, err = SweepManagerFees(ctx, sys.Service, sys.Service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}

func TestBuildWiresRemoteFeed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/"+dai.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"0.998","updatedAt":"` + now.Format(time.RFC3339) + `"}`))
	}))
	t.Cleanup(server.Close)

	f := parseSample(t)
	f.Assets[2].Feed.Kind = FeedHTTP
	f.Assets[2].Feed.URL = server.URL
	sys, err := Build(f, Options{Clock: clock.NewManual(now)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	quote, err := sys.Oracle.Price(context.Background(), dai)
	require.NoError(t, err)
	assert.Equal(t, "998000000000000000", quote.Price.String())
}
