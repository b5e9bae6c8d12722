package application

import (
	"context"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

var (
	weth = address.MustParse("0x00000000000000000000000000000000000000e1")
	usdc = address.MustParse("0x00000000000000000000000000000000000000c1")
	t0   = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func usd(n int64) sdkmath.Int { return sdkmath.NewIntWithDecimal(n, domain.Decimals) }

func TestPriceUsesMedianOfFreshAnswers(t *testing.T) {
	clk := clock.NewManual(t0)
	a, b, c := feeds.NewManual("a"), feeds.NewManual("b"), feeds.NewManual("c")
	a.Push(weth, usd(2000), t0)
	b.Push(weth, usd(2100), t0)
	c.Push(weth, usd(9999), t0.Add(-48*time.Hour))

	o := NewOracle(clk, WithMaxAge(time.Hour))
	o.SetFeeds(weth, a, b, c)

	quote, err := o.Price(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, usd(2050).String(), quote.Price.String())
	assert.Equal(t, 2, quote.Sources)
}

func TestPriceStaleAndUnavailable(t *testing.T) {
	clk := clock.NewManual(t0)
	m := feeds.NewManual("")
	m.Push(weth, usd(2000), t0)
	o := NewOracle(clk, WithMaxAge(time.Hour))
	o.SetFeeds(weth, m)

	clk.Advance(2 * time.Hour)
	_, err := o.Price(context.Background(), weth)
	assert.ErrorIs(t, err, domain.ErrPriceStale)

	_, err = o.Price(context.Background(), usdc)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)

	o.SetFeeds(usdc, feeds.NewManual("empty"))
	_, err = o.Price(context.Background(), usdc)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestMaxAgeIsAdjustable(t *testing.T) {
	clk := clock.NewManual(t0)
	m := feeds.NewManual("")
	m.Push(weth, usd(2000), t0)
	o := NewOracle(clk, WithMaxAge(time.Hour))
	o.SetFeeds(weth, m)
	clk.Advance(2 * time.Hour)

	require.NoError(t, o.SetMaxAge(3*time.Hour))
	_, err := o.Price(context.Background(), weth)
	assert.NoError(t, err)
	assert.Error(t, o.SetMaxAge(0))
}

func TestTWAPWeightsObservationsByDuration(t *testing.T) {
	clk := clock.NewManual(t0)
	m := feeds.NewManual("")
	o := NewOracle(clk, WithMaxAge(24*time.Hour))
	o.SetFeeds(weth, m)

	m.Push(weth, usd(1000), clk.Now())
	require.NoError(t, o.Observe(context.Background()))

	clk.Advance(30 * time.Minute)
	m.Push(weth, usd(3000), clk.Now())
	require.NoError(t, o.Observe(context.Background()))

	clk.Advance(30 * time.Minute)
	twap, err := o.TWAP(context.Background(), weth, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, usd(2000).String(), twap.String())

	// a spike right before reading barely moves the average
	m.Push(weth, usd(100000), clk.Now())
	require.NoError(t, o.Observe(context.Background()))
	twap, err = o.TWAP(context.Background(), weth, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, usd(2000).String(), twap.String())
}

func TestTWAPClampsObservationBeforeWindow(t *testing.T) {
	clk := clock.NewManual(t0)
	o := NewOracle(clk)
	o.Record(weth, domain.Observation{At: t0, Price: usd(500)})
	clk.Advance(10 * time.Hour)

	twap, err := o.TWAP(context.Background(), weth, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, usd(500).String(), twap.String())
}

func TestTWAPFallsBackToSpot(t *testing.T) {
	clk := clock.NewManual(t0)
	o := NewOracle(clk)
	o.SetFeeds(usdc, feeds.NewPeg(clk))
	twap, err := o.TWAP(context.Background(), usdc, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, domain.One.String(), twap.String())
}

func TestHistoryRingKeepsMostRecent(t *testing.T) {
	r := newRing(3)
	for i := 0; i < 5; i++ {
		r.push(domain.Observation{At: t0.Add(time.Duration(i) * time.Minute), Price: usd(int64(i))})
	}
	got := r.ordered()
	require.Len(t, got, 3)
	assert.Equal(t, t0.Add(2*time.Minute), got[0].At)
	assert.Equal(t, t0.Add(4*time.Minute), got[2].At)
}
