package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

const (
	DefaultMaxAge      = 25 * time.Hour
	DefaultHistorySize = 288
)

// Oracle aggregates the feeds registered per asset into a single price.
type Oracle struct {
	mu          sync.RWMutex
	feeds       map[address.Address][]ports.Feed
	history     map[address.Address]*ring
	maxAge      time.Duration
	historySize int
	clock       clock.Clock
}

type Option func(*Oracle)

// WithMaxAge overrides the freshness window.
func WithMaxAge(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.maxAge = d
		}
	}
}

// WithHistorySize bounds the number of observations kept per asset.
func WithHistorySize(n int) Option {
	return func(o *Oracle) {
		if n > 0 {
			o.historySize = n
		}
	}
}

func NewOracle(clk clock.Clock, opts ...Option) *Oracle {
	if clk == nil {
		clk = clock.System{}
	}
	o := &Oracle{
		feeds:       map[address.Address][]ports.Feed{},
		history:     map[address.Address]*ring{},
		maxAge:      DefaultMaxAge,
		historySize: DefaultHistorySize,
		clock:       clk,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// SetFeeds replaces the sources for asset. Passing no feeds removes the asset.
func (o *Oracle) SetFeeds(asset address.Address, feeds ...ports.Feed) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(feeds) == 0 {
		delete(o.feeds, asset)
		return
	}
	o.feeds[asset] = append([]ports.Feed(nil), feeds...)
}

// SetMaxAge changes how old an answer may be before it is ignored.
func (o *Oracle) SetMaxAge(d time.Duration) error {
	if d <= 0 {
		return errors.New("max price age must be positive")
	}
	o.mu.Lock()
	o.maxAge = d
	o.mu.Unlock()
	return nil
}

func (o *Oracle) MaxAge() time.Duration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.maxAge
}

// Assets lists every asset with at least one feed.
func (o *Oracle) Assets() []address.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]address.Address, 0, len(o.feeds))
	for a := range o.feeds {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Price returns the median of the fresh answers for asset.
func (o *Oracle) Price(ctx context.Context, asset address.Address) (domain.Quote, error) {
	o.mu.RLock()
	feeds := o.feeds[asset]
	maxAge := o.maxAge
	o.mu.RUnlock()

	if len(feeds) == 0 {
		return domain.Quote{}, domain.ErrPriceUnavailable.With("asset %s has no feed", asset)
	}
	now := o.clock.Now()
	var (
		fresh  []domain.Round
		stale  int
		newest time.Time
	)
	for _, feed := range feeds {
		round, err := feed.Latest(ctx, asset)
		if err != nil || round.Price.IsNil() || !round.Price.IsPositive() {
			continue
		}
		if now.Sub(round.UpdatedAt) > maxAge {
			stale++
			continue
		}
		fresh = append(fresh, round)
		if round.UpdatedAt.After(newest) {
			newest = round.UpdatedAt
		}
	}
	if len(fresh) == 0 {
		if stale > 0 {
			return domain.Quote{}, domain.ErrPriceStale.With("asset %s: %d stale answers", asset, stale)
		}
		return domain.Quote{}, domain.ErrPriceUnavailable.With("asset %s: no answer", asset)
	}
	return domain.Quote{
		Asset:   asset,
		Price:   median(fresh),
		AsOf:    newest,
		Sources: len(fresh),
	}, nil
}

// Observe samples the current price of every asset into its history.
func (o *Oracle) Observe(ctx context.Context) error {
	var errs []error
	for _, asset := range o.Assets() {
		quote, err := o.Price(ctx, asset)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		o.record(asset, domain.Observation{At: o.clock.Now(), Price: quote.Price})
	}
	return errors.Join(errs...)
}

// Record stores an observation directly, used when backfilling history.
func (o *Oracle) Record(asset address.Address, obs domain.Observation) {
	o.record(asset, obs)
}

func (o *Oracle) record(asset address.Address, obs domain.Observation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.history[asset]
	if !ok {
		h = newRing(o.historySize)
		o.history[asset] = h
	}
	h.push(obs)
}

// TWAP averages observations over window, weighting each by how long it held.
// The observation preceding the window start is clamped to the start. With no
// history the current aggregated price is returned.
func (o *Oracle) TWAP(ctx context.Context, asset address.Address, window time.Duration) (sdkmath.Int, error) {
	if window <= 0 {
		return sdkmath.Int{}, fmt.Errorf("twap window must be positive")
	}
	now := o.clock.Now()
	start := now.Add(-window)

	o.mu.RLock()
	var points []domain.Observation
	if h, ok := o.history[asset]; ok {
		points = h.since(start, now)
	}
	o.mu.RUnlock()

	if len(points) == 0 {
		quote, err := o.Price(ctx, asset)
		if err != nil {
			return sdkmath.Int{}, err
		}
		return quote.Price, nil
	}
	if points[0].At.Before(start) {
		points[0].At = start
	}
	total := now.Sub(points[0].At)
	if total <= 0 {
		return points[len(points)-1].Price, nil
	}
	sum := sdkmath.ZeroInt()
	for i, p := range points {
		end := now
		if i+1 < len(points) {
			end = points[i+1].At
		}
		held := int64(end.Sub(p.At) / time.Second)
		sum = sum.Add(p.Price.MulRaw(held))
	}
	seconds := int64(total / time.Second)
	if seconds == 0 {
		return points[len(points)-1].Price, nil
	}
	return sum.QuoRaw(seconds), nil
}

func median(rounds []domain.Round) sdkmath.Int {
	prices := make([]sdkmath.Int, len(rounds))
	for i, r := range rounds {
		prices[i] = r.Price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LT(prices[j]) })
	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		return prices[mid]
	}
	return prices[mid-1].Add(prices[mid]).QuoRaw(2)
}

var _ ports.Oracle = (*Oracle)(nil)
