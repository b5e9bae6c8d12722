// Package tokens is an in-memory fungible token ledger with standard transfer
// and allowance semantics. It backs custody in development and tests.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrInvalidAmount         = errors.New("amount must not be negative")
	ErrUnknownCall           = errors.New("token does not implement call")
)

var (
	selApprove  = calldata.SelectorOf("approve(address,uint256)")
	selTransfer = calldata.SelectorOf("transfer(address,uint256)")
)

type allowanceKey struct {
	asset, owner, spender address.Address
}

type balanceKey struct {
	asset, holder address.Address
}

// Ledger tracks balances and allowances of every asset.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[balanceKey]sdkmath.Int
	allowances map[allowanceKey]sdkmath.Int
	hooks      map[address.Address]func(ctx context.Context, from, to address.Address, amount sdkmath.Int)
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   map[balanceKey]sdkmath.Int{},
		allowances: map[allowanceKey]sdkmath.Int{},
		hooks:      map[address.Address]func(context.Context, address.Address, address.Address, sdkmath.Int){},
	}
}

// OnReceive registers a callback run after holder receives any token, outside
// the ledger lock. Used to simulate tokens that call back into their receiver.
func (l *Ledger) OnReceive(holder address.Address, fn func(ctx context.Context, from, to address.Address, amount sdkmath.Int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fn == nil {
		delete(l.hooks, holder)
		return
	}
	l.hooks[holder] = fn
}

func (l *Ledger) BalanceOf(_ context.Context, asset, holder address.Address) (sdkmath.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(asset, holder), nil
}

func (l *Ledger) balance(asset, holder address.Address) sdkmath.Int {
	if v, ok := l.balances[balanceKey{asset, holder}]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// Mint creates amount of asset for holder.
func (l *Ledger) Mint(asset, holder address.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{asset, holder}
	l.balances[k] = l.balance(asset, holder).Add(amount)
	return nil
}

// Burn destroys amount of asset held by holder.
func (l *Ledger) Burn(asset, holder address.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.balance(asset, holder)
	if current.LT(amount) {
		return ErrInsufficientBalance
	}
	l.balances[balanceKey{asset, holder}] = current.Sub(amount)
	return nil
}

// Transfer moves amount of asset between holders.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to address.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	current := l.balance(asset, from)
	if current.LT(amount) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, from, current, amount)
	}
	l.balances[balanceKey{asset, from}] = current.Sub(amount)
	l.balances[balanceKey{asset, to}] = l.balance(asset, to).Add(amount)
	hook := l.hooks[to]
	l.mu.Unlock()
	if hook != nil {
		hook(ctx, from, to, amount)
	}
	return nil
}

func (l *Ledger) Approve(asset, owner, spender address.Address, amount sdkmath.Int) {
	l.mu.Lock()
	l.allowances[allowanceKey{asset, owner, spender}] = amount
	l.mu.Unlock()
}

func (l *Ledger) Allowance(asset, owner, spender address.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.allowances[allowanceKey{asset, owner, spender}]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}

// TransferFrom moves tokens on behalf of owner, consuming spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, asset, spender, owner, to address.Address, amount sdkmath.Int) error {
	l.mu.Lock()
	k := allowanceKey{asset, owner, spender}
	allowed, ok := l.allowances[k]
	if !ok || allowed.LT(amount) {
		l.mu.Unlock()
		return ErrInsufficientAllowance
	}
	l.allowances[k] = allowed.Sub(amount)
	l.mu.Unlock()
	if err := l.Transfer(ctx, asset, owner, to, amount); err != nil {
		l.mu.Lock()
		l.allowances[k] = allowed
		l.mu.Unlock()
		return err
	}
	return nil
}

// Call executes approve and transfer payloads sent to a token contract.
func (l *Ledger) Call(ctx context.Context, asset, caller address.Address, data []byte) error {
	dec, err := calldata.Decode(data)
	if err != nil {
		return err
	}
	to, err := dec.Address(0)
	if err != nil {
		return err
	}
	amount, err := dec.Uint(1)
	if err != nil {
		return err
	}
	switch dec.Selector() {
	case selApprove:
		l.Approve(asset, caller, to, amount)
		return nil
	case selTransfer:
		return l.Transfer(ctx, asset, caller, to, amount)
	default:
		return ErrUnknownCall
	}
}

// Snapshot captures the ledger; the returned func restores it.
func (l *Ledger) Snapshot() func() {
	l.mu.RLock()
	balances := make(map[balanceKey]sdkmath.Int, len(l.balances))
	for k, v := range l.balances {
		balances[k] = v
	}
	allowances := make(map[allowanceKey]sdkmath.Int, len(l.allowances))
	for k, v := range l.allowances {
		allowances[k] = v
	}
	l.mu.RUnlock()
	return func() {
		l.mu.Lock()
		l.balances = balances
		l.allowances = allowances
		l.mu.Unlock()
	}
}
