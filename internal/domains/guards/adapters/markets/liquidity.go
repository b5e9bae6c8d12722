package markets

import (
	"context"
	"maps"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var (
	selStake   = calldata.SelectorOf("stake(address,uint256)")
	selUnstake = calldata.SelectorOf("unstake(address,uint256)")
)

// Pools reports configured reserves of LP tokens.
type Pools struct {
	mu       sync.RWMutex
	reserves map[address.Address]ports.PoolReserves
}

func NewPools() *Pools {
	return &Pools{reserves: map[address.Address]ports.PoolReserves{}}
}

func (p *Pools) SetReserves(lp address.Address, r ports.PoolReserves) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reserves[lp] = r
}

func (p *Pools) Reserves(_ context.Context, lp address.Address) (ports.PoolReserves, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.reserves[lp]
	if !ok {
		return ports.PoolReserves{}, ErrUnknownMarket
	}
	return r, nil
}

// Snapshot captures the reserves; the returned func restores them.
func (p *Pools) Snapshot() func() {
	p.mu.RLock()
	reserves := maps.Clone(p.reserves)
	p.mu.RUnlock()
	return func() {
		p.mu.Lock()
		p.reserves = reserves
		p.mu.Unlock()
	}
}

// Staking holds LP tokens on behalf of stakers.
type Staking struct {
	mu      sync.Mutex
	address address.Address
	ledger  *tokens.Ledger
	staked  map[[2]address.Address]sdkmath.Int
}

func NewStaking(addr address.Address, ledger *tokens.Ledger) *Staking {
	return &Staking{address: addr, ledger: ledger, staked: map[[2]address.Address]sdkmath.Int{}}
}

func (s *Staking) Address() address.Address { return s.address }

func (s *Staking) Staked(_ context.Context, lp, holder address.Address) (sdkmath.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return zeroIfNil(s.staked[[2]address.Address{lp, holder}]), nil
}

func (s *Staking) Stake(ctx context.Context, lp, holder address.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ledger.Transfer(ctx, lp, holder, s.address, amount); err != nil {
		return err
	}
	k := [2]address.Address{lp, holder}
	s.staked[k] = zeroIfNil(s.staked[k]).Add(amount)
	return nil
}

func (s *Staking) Unstake(ctx context.Context, lp, holder address.Address, amount sdkmath.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]address.Address{lp, holder}
	have := zeroIfNil(s.staked[k])
	if have.LT(amount) {
		return tokens.ErrInsufficientBalance
	}
	if err := s.ledger.Transfer(ctx, lp, s.address, holder, amount); err != nil {
		return err
	}
	s.staked[k] = have.Sub(amount)
	return nil
}

// Snapshot captures staked balances; the returned func restores them.
func (s *Staking) Snapshot() func() {
	s.mu.Lock()
	staked := maps.Clone(s.staked)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.staked = staked
		s.mu.Unlock()
	}
}

// Call handles stake and unstake payloads.
func (s *Staking) Call(ctx context.Context, _ address.Address, caller address.Address, data []byte) error {
	dec, err := calldata.Decode(data)
	if err != nil {
		return err
	}
	lp, err := dec.Address(0)
	if err != nil {
		return err
	}
	amount, err := dec.Uint(1)
	if err != nil {
		return err
	}
	switch dec.Selector() {
	case selStake:
		return s.Stake(ctx, lp, caller, amount)
	case selUnstake:
		return s.Unstake(ctx, lp, caller, amount)
	}
	return ErrUnknownSelector
}

var (
	_ ports.LiquidityPool = (*Pools)(nil)
	_ ports.StakingPool   = (*Staking)(nil)
)
