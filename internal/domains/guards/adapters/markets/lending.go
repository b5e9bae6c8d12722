package markets

import (
	"context"
	"maps"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	selSupply   = calldata.SelectorOf("supply(address,uint256,address)")
	selWithdraw = calldata.SelectorOf("withdraw(address,uint256,address)")
	selBorrow   = calldata.SelectorOf("borrow(address,uint256,address)")
	selRepay    = calldata.SelectorOf("repay(address,uint256,address)")
)

type lendingAccount struct {
	collateral map[address.Address]sdkmath.Int
	debt       map[address.Address]sdkmath.Int
}

// LendingPool is a single lending market keyed by its own address.
type LendingPool struct {
	pricer
	mu       sync.Mutex
	address  address.Address
	ledger   *tokens.Ledger
	accounts map[address.Address]*lendingAccount
}

func NewLendingPool(addr address.Address, ledger *tokens.Ledger, oracle pricingports.Oracle, assets ports.AssetDirectory) *LendingPool {
	return &LendingPool{
		pricer:   pricer{oracle: oracle, assets: assets},
		address:  addr,
		ledger:   ledger,
		accounts: map[address.Address]*lendingAccount{},
	}
}

func (p *LendingPool) Address() address.Address { return p.address }

func (p *LendingPool) account(holder address.Address) *lendingAccount {
	acc, ok := p.accounts[holder]
	if !ok {
		acc = &lendingAccount{collateral: map[address.Address]sdkmath.Int{}, debt: map[address.Address]sdkmath.Int{}}
		p.accounts[holder] = acc
	}
	return acc
}

func (p *LendingPool) Call(ctx context.Context, _ address.Address, caller address.Address, data []byte) error {
	dec, err := calldata.Decode(data)
	if err != nil {
		return err
	}
	asset, err := dec.Address(0)
	if err != nil {
		return err
	}
	amount, err := dec.Uint(1)
	if err != nil {
		return err
	}
	who, err := dec.Address(2)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch dec.Selector() {
	case selSupply:
		if err := p.ledger.Transfer(ctx, asset, caller, p.address, amount); err != nil {
			return err
		}
		acc := p.account(who)
		acc.collateral[asset] = zeroIfNil(acc.collateral[asset]).Add(amount)
	case selWithdraw:
		acc := p.account(caller)
		have := zeroIfNil(acc.collateral[asset])
		if have.LT(amount) {
			return tokens.ErrInsufficientBalance
		}
		acc.collateral[asset] = have.Sub(amount)
		return settle(ctx, p.ledger, asset, p.address, who, amount)
	case selBorrow:
		acc := p.account(who)
		acc.debt[asset] = zeroIfNil(acc.debt[asset]).Add(amount)
		return settle(ctx, p.ledger, asset, p.address, who, amount)
	case selRepay:
		acc := p.account(who)
		owed := zeroIfNil(acc.debt[asset])
		amount = sdkmath.MinInt(owed, amount)
		if err := p.ledger.Transfer(ctx, asset, caller, p.address, amount); err != nil {
			return err
		}
		acc.debt[asset] = owed.Sub(amount)
	default:
		return ErrUnknownSelector
	}
	return nil
}

func (p *LendingPool) Position(_ context.Context, market, holder address.Address) (ports.LendingPosition, error) {
	if market != p.address {
		return ports.LendingPosition{}, ErrUnknownMarket
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[holder]
	if !ok {
		return ports.LendingPosition{}, nil
	}
	return ports.LendingPosition{Collateral: holdings(acc.collateral), Debt: holdings(acc.debt)}, nil
}

// Unwind repays the portion of debt out of the matching portion of collateral,
// as a flash-loan unwind would, and pays the remainder to the holder.
func (p *LendingPool) Unwind(ctx context.Context, market, holder address.Address, numerator, denominator sdkmath.Int) ([]ports.Holding, error) {
	if market != p.address {
		return nil, ErrUnknownMarket
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[holder]
	if !ok || denominator.IsZero() {
		return nil, nil
	}
	debtValue := sdkmath.ZeroInt()
	for asset, owed := range acc.debt {
		part := owed.Mul(numerator).Quo(denominator)
		v, err := p.value(ctx, asset, part)
		if err != nil {
			return nil, err
		}
		debtValue = debtValue.Add(v)
		acc.debt[asset] = owed.Sub(part)
	}
	var released []ports.Holding
	for _, h := range holdings(acc.collateral) {
		part := h.Amount.Mul(numerator).Quo(denominator)
		acc.collateral[h.Asset] = h.Amount.Sub(part)
		if debtValue.IsPositive() {
			partValue, err := p.value(ctx, h.Asset, part)
			if err != nil {
				return nil, err
			}
			covered := sdkmath.MinInt(partValue, debtValue)
			spent, err := p.amount(ctx, h.Asset, covered)
			if err != nil {
				return nil, err
			}
			part = part.Sub(sdkmath.MinInt(part, spent))
			debtValue = debtValue.Sub(covered)
		}
		if part.IsPositive() {
			if err := settle(ctx, p.ledger, h.Asset, p.address, holder, part); err != nil {
				return nil, err
			}
			released = append(released, ports.Holding{Asset: h.Asset, Amount: part})
		}
	}
	return released, nil
}

// Snapshot captures every account; the returned func restores them.
func (p *LendingPool) Snapshot() func() {
	p.mu.Lock()
	accounts := make(map[address.Address]*lendingAccount, len(p.accounts))
	for holder, acc := range p.accounts {
		accounts[holder] = &lendingAccount{collateral: maps.Clone(acc.collateral), debt: maps.Clone(acc.debt)}
	}
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.accounts = accounts
		p.mu.Unlock()
	}
}

func holdings(m map[address.Address]sdkmath.Int) []ports.Holding {
	out := make([]ports.Holding, 0, len(m))
	for a, v := range m {
		if v.IsPositive() {
			out = append(out, ports.Holding{Asset: a, Amount: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset.String() < out[j].Asset.String() })
	return out
}

var _ ports.LendingMarket = (*LendingPool)(nil)
