// Package feeds contains the price sources the oracle aggregates.
package feeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

// Fixed always answers the same price as of now, for assets pegged to the valuation currency.
type Fixed struct {
	price sdkmath.Int
	clock clock.Clock
}

func NewFixed(price sdkmath.Int, clk clock.Clock) *Fixed {
	return &Fixed{price: price, clock: clk}
}

// NewPeg answers exactly one unit of the valuation currency.
func NewPeg(clk clock.Clock) *Fixed {
	return NewFixed(domain.One, clk)
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Latest(context.Context, address.Address) (domain.Round, error) {
	return domain.Round{Price: f.price, UpdatedAt: f.clock.Now()}, nil
}

// Manual holds rounds pushed by an operator or a test.
type Manual struct {
	mu     sync.RWMutex
	name   string
	rounds map[address.Address]domain.Round
}

func NewManual(name string) *Manual {
	if name == "" {
		name = "manual"
	}
	return &Manual{name: name, rounds: map[address.Address]domain.Round{}}
}

func (m *Manual) Name() string { return m.name }

// Push records a new answer for asset.
func (m *Manual) Push(asset address.Address, price sdkmath.Int, at time.Time) {
	m.mu.Lock()
	m.rounds[asset] = domain.Round{Price: price, UpdatedAt: at}
	m.mu.Unlock()
}

func (m *Manual) Latest(_ context.Context, asset address.Address) (domain.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	round, ok := m.rounds[asset]
	if !ok {
		return domain.Round{}, ports.ErrNoRound
	}
	return round, nil
}

// Static answers prices configured as decimal strings, always fresh.
type Static struct {
	prices map[address.Address]sdkmath.Int
	clock  clock.Clock
}

// NewStatic parses human-readable prices such as "1.0025".
func NewStatic(prices map[address.Address]string, clk clock.Clock) (*Static, error) {
	parsed := make(map[address.Address]sdkmath.Int, len(prices))
	for asset, raw := range prices {
		v, err := ParseDecimal(raw, domain.Decimals)
		if err != nil {
			return nil, fmt.Errorf("static price for %s: %w", asset, err)
		}
		parsed[asset] = v
	}
	return &Static{prices: parsed, clock: clk}, nil
}

func (s *Static) Name() string { return "static" }

func (s *Static) Latest(_ context.Context, asset address.Address) (domain.Round, error) {
	price, ok := s.prices[asset]
	if !ok {
		return domain.Round{}, ports.ErrNoRound
	}
	return domain.Round{Price: price, UpdatedAt: s.clock.Now()}, nil
}

// Scaled rescales another feed reporting with a different precision.
type Scaled struct {
	inner    ports.Feed
	decimals int
}

func NewScaled(inner ports.Feed, decimals int) *Scaled {
	return &Scaled{inner: inner, decimals: decimals}
}

func (s *Scaled) Name() string { return s.inner.Name() + "/scaled" }

func (s *Scaled) Latest(ctx context.Context, asset address.Address) (domain.Round, error) {
	round, err := s.inner.Latest(ctx, asset)
	if err != nil {
		return domain.Round{}, err
	}
	round.Price = Rescale(round.Price, s.decimals, domain.Decimals)
	return round, nil
}

// Rescale converts v from one fixed-point precision to another, flooring.
func Rescale(v sdkmath.Int, from, to int) sdkmath.Int {
	switch {
	case from == to:
		return v
	case from < to:
		return v.Mul(sdkmath.NewIntWithDecimal(1, to-from))
	default:
		return v.Quo(sdkmath.NewIntWithDecimal(1, from-to))
	}
}

// ParseDecimal reads a decimal string into a fixed-point integer, truncating extra digits.
func ParseDecimal(raw string, decimals int32) (sdkmath.Int, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if d.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("negative amount %q", raw)
	}
	return sdkmath.NewIntFromBigInt(d.Shift(decimals).Truncate(0).BigInt()), nil
}

// FormatDecimal renders a fixed-point integer for humans.
func FormatDecimal(v sdkmath.Int, decimals int32) string {
	if v.IsNil() {
		return "0"
	}
	return decimal.NewFromBigInt(v.BigInt(), -decimals).String()
}

var (
	_ ports.Feed = (*Fixed)(nil)
	_ ports.Feed = (*Manual)(nil)
	_ ports.Feed = (*Static)(nil)
	_ ports.Feed = (*Scaled)(nil)
)
