package markets

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingdomain "github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	selTransferMargin    = calldata.SelectorOf("transferMargin(int256)")
	selModifyPosition    = calldata.SelectorOf("modifyPosition(int256)")
	selClosePosition     = calldata.SelectorOf("closePosition()")
	selWithdrawAllMargin = calldata.SelectorOf("withdrawAllMargin()")
)

// PerpSpec configures one simulated perpetual market.
type PerpSpec struct {
	Market      address.Address
	MarginAsset address.Address
	IndexAsset  address.Address
	MinMargin   sdkmath.Int
}

// PerpExchange hosts isolated-margin perpetual markets. PnL is settled in the
// margin asset at spot prices.
type PerpExchange struct {
	pricer
	mu        sync.Mutex
	ledger    *tokens.Ledger
	markets   map[address.Address]PerpSpec
	positions map[address.Address]map[address.Address]*ports.PerpPosition
}

func NewPerpExchange(ledger *tokens.Ledger, oracle pricingports.Oracle, assets ports.AssetDirectory, specs ...PerpSpec) *PerpExchange {
	e := &PerpExchange{
		pricer:    pricer{oracle: oracle, assets: assets},
		ledger:    ledger,
		markets:   map[address.Address]PerpSpec{},
		positions: map[address.Address]map[address.Address]*ports.PerpPosition{},
	}
	for _, s := range specs {
		e.markets[s.Market] = s
		e.positions[s.Market] = map[address.Address]*ports.PerpPosition{}
	}
	return e
}

// Markets lists every market address.
func (e *PerpExchange) Markets() []address.Address {
	out := make([]address.Address, 0, len(e.markets))
	for a := range e.markets {
		out = append(out, a)
	}
	return out
}

func (e *PerpExchange) IsMarket(market address.Address) bool {
	_, ok := e.markets[market]
	return ok
}

func (e *PerpExchange) spec(market address.Address) (PerpSpec, error) {
	s, ok := e.markets[market]
	if !ok {
		return PerpSpec{}, ErrUnknownMarket
	}
	return s, nil
}

func (e *PerpExchange) position(market, holder address.Address) *ports.PerpPosition {
	pos, ok := e.positions[market][holder]
	if !ok {
		pos = &ports.PerpPosition{Margin: sdkmath.ZeroInt(), Size: sdkmath.ZeroInt(), EntryPrice: sdkmath.ZeroInt(), Funding: sdkmath.ZeroInt()}
		e.positions[market][holder] = pos
	}
	return pos
}

func (e *PerpExchange) Position(_ context.Context, market, holder address.Address) (ports.PerpPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.spec(market); err != nil {
		return ports.PerpPosition{}, err
	}
	if pos, ok := e.positions[market][holder]; ok {
		return *pos, nil
	}
	return ports.PerpPosition{Margin: sdkmath.ZeroInt(), Size: sdkmath.ZeroInt(), EntryPrice: sdkmath.ZeroInt(), Funding: sdkmath.ZeroInt()}, nil
}

// SetFunding overrides accrued funding, in margin asset units.
func (e *PerpExchange) SetFunding(market, holder address.Address, funding sdkmath.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position(market, holder).Funding = funding
}

func (e *PerpExchange) MarginAsset(_ context.Context, market address.Address) (address.Address, error) {
	s, err := e.spec(market)
	return s.MarginAsset, err
}

func (e *PerpExchange) IndexAsset(_ context.Context, market address.Address) (address.Address, error) {
	s, err := e.spec(market)
	return s.IndexAsset, err
}

func (e *PerpExchange) MinMargin(_ context.Context, market address.Address) (sdkmath.Int, error) {
	s, err := e.spec(market)
	return zeroIfNil(s.MinMargin), err
}

func (e *PerpExchange) WithdrawMargin(ctx context.Context, market, holder address.Address, amount sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transferMargin(ctx, market, holder, amount.Neg())
}

func (e *PerpExchange) ModifyPosition(ctx context.Context, market, holder address.Address, delta sdkmath.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modify(ctx, market, holder, delta)
}

func (e *PerpExchange) Close(ctx context.Context, market, holder address.Address) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.spec(market)
	if err != nil {
		return sdkmath.Int{}, err
	}
	pos := e.position(market, holder)
	if err := e.realize(ctx, s, pos); err != nil {
		return sdkmath.Int{}, err
	}
	released := pos.Margin.Add(pos.Funding)
	if released.IsNegative() {
		released = sdkmath.ZeroInt()
	}
	*pos = ports.PerpPosition{Margin: sdkmath.ZeroInt(), Size: sdkmath.ZeroInt(), EntryPrice: sdkmath.ZeroInt(), Funding: sdkmath.ZeroInt()}
	return released, settle(ctx, e.ledger, s.MarginAsset, market, holder, released)
}

// Call handles the guarded market selectors sent by a fund.
func (e *PerpExchange) Call(ctx context.Context, market, caller address.Address, data []byte) error {
	dec, err := calldata.Decode(data)
	if err != nil {
		return err
	}
	switch dec.Selector() {
	case selTransferMargin:
		delta, err := dec.Int(0)
		if err != nil {
			return err
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.transferMargin(ctx, market, caller, delta)
	case selModifyPosition:
		delta, err := dec.Int(0)
		if err != nil {
			return err
		}
		return e.ModifyPosition(ctx, market, caller, delta)
	case selClosePosition:
		e.mu.Lock()
		defer e.mu.Unlock()
		s, err := e.spec(market)
		if err != nil {
			return err
		}
		return e.realize(ctx, s, e.position(market, caller))
	case selWithdrawAllMargin:
		e.mu.Lock()
		defer e.mu.Unlock()
		pos := e.position(market, caller)
		if !pos.Size.IsZero() {
			return ErrNoPosition
		}
		return e.transferMargin(ctx, market, caller, pos.Margin.Neg())
	}
	return ErrUnknownSelector
}

func (e *PerpExchange) transferMargin(ctx context.Context, market, holder address.Address, delta sdkmath.Int) error {
	s, err := e.spec(market)
	if err != nil {
		return err
	}
	pos := e.position(market, holder)
	next := pos.Margin.Add(delta)
	if next.IsNegative() {
		return tokens.ErrInsufficientBalance
	}
	if err := settle(ctx, e.ledger, s.MarginAsset, market, holder, delta.Neg()); err != nil {
		return err
	}
	pos.Margin = next
	return nil
}

func (e *PerpExchange) modify(ctx context.Context, market, holder address.Address, delta sdkmath.Int) error {
	s, err := e.spec(market)
	if err != nil {
		return err
	}
	pos := e.position(market, holder)
	if err := e.realize(ctx, s, pos); err != nil {
		return err
	}
	pos.Size = pos.Size.Add(delta)
	return nil
}

// realize books PnL into margin and re-marks the entry price at spot.
func (e *PerpExchange) realize(ctx context.Context, s PerpSpec, pos *ports.PerpPosition) error {
	q, err := e.oracle.Price(ctx, s.IndexAsset)
	if err != nil {
		return err
	}
	if !pos.Size.IsZero() {
		pnlValue := pos.Size.Mul(q.Price.Sub(pos.EntryPrice)).Quo(pricingdomain.One)
		neg := pnlValue.IsNegative()
		pnl, err := e.amount(ctx, s.MarginAsset, pnlValue.Abs())
		if err != nil {
			return err
		}
		if neg {
			pnl = pnl.Neg()
		}
		pos.Margin = pos.Margin.Add(pnl)
		if pos.Margin.IsNegative() {
			pos.Margin = sdkmath.ZeroInt()
		}
	}
	pos.EntryPrice = q.Price
	return nil
}

// Snapshot deep-copies every position; the returned func restores them.
func (e *PerpExchange) Snapshot() func() {
	e.mu.Lock()
	positions := make(map[address.Address]map[address.Address]*ports.PerpPosition, len(e.positions))
	for market, byHolder := range e.positions {
		cp := make(map[address.Address]*ports.PerpPosition, len(byHolder))
		for holder, pos := range byHolder {
			p := *pos
			cp[holder] = &p
		}
		positions[market] = cp
	}
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.positions = positions
		e.mu.Unlock()
	}
}

var _ ports.PerpMarket = (*PerpExchange)(nil)
