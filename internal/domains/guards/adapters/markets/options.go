package markets

import (
	"context"
	"maps"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingdomain "github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// OptionVault settles option positions at spot intrinsic value.
type OptionVault struct {
	mu        sync.Mutex
	address   address.Address
	ledger    *tokens.Ledger
	oracle    pricingports.Oracle
	minimum   sdkmath.Int
	positions map[address.Address]ports.OptionPosition
}

func NewOptionVault(addr address.Address, ledger *tokens.Ledger, oracle pricingports.Oracle, minimum sdkmath.Int) *OptionVault {
	return &OptionVault{address: addr, ledger: ledger, oracle: oracle, minimum: minimum, positions: map[address.Address]ports.OptionPosition{}}
}

func (v *OptionVault) Address() address.Address { return v.address }

// Open writes a position for holder, replacing any existing one.
func (v *OptionVault) Open(holder address.Address, pos ports.OptionPosition) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.positions[holder] = pos
}

func (v *OptionVault) Position(_ context.Context, market, holder address.Address) (ports.OptionPosition, error) {
	if market != v.address {
		return ports.OptionPosition{}, ErrUnknownMarket
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.positions[holder]
	if !ok {
		return ports.OptionPosition{Amount: sdkmath.ZeroInt(), Strike: sdkmath.ZeroInt()}, nil
	}
	return pos, nil
}

func (v *OptionVault) MinPosition(_ context.Context, market address.Address) (sdkmath.Int, error) {
	if market != v.address {
		return sdkmath.Int{}, ErrUnknownMarket
	}
	return zeroIfNil(v.minimum), nil
}

// ClosePosition pays intrinsic value for amount contracts in the settlement asset,
// assuming a settlement asset worth one unit of valuation currency with 18 decimals.
func (v *OptionVault) ClosePosition(ctx context.Context, market, holder address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	if market != v.address {
		return sdkmath.Int{}, ErrUnknownMarket
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.positions[holder]
	if !ok || pos.Amount.LT(amount) {
		return sdkmath.Int{}, ErrNoPosition
	}
	q, err := v.oracle.Price(ctx, pos.Underlying)
	if err != nil {
		return sdkmath.Int{}, err
	}
	intrinsic := q.Price.Sub(pos.Strike)
	if !pos.Call {
		intrinsic = intrinsic.Neg()
	}
	proceeds := sdkmath.ZeroInt()
	if intrinsic.IsPositive() {
		proceeds = amount.Mul(intrinsic).Quo(pricingdomain.One)
	}
	pos.Amount = pos.Amount.Sub(amount)
	v.positions[holder] = pos
	return proceeds, settle(ctx, v.ledger, pos.Settlement, v.address, holder, proceeds)
}

// Snapshot captures every position; the returned func restores them.
func (v *OptionVault) Snapshot() func() {
	v.mu.Lock()
	positions := maps.Clone(v.positions)
	v.mu.Unlock()
	return func() {
		v.mu.Lock()
		v.positions = positions
		v.mu.Unlock()
	}
}

var _ ports.OptionMarket = (*OptionVault)(nil)
