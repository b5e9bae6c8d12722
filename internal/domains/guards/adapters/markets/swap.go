package markets

import (
	"context"
	"sync"

	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
)

var selSwapExactIn = calldata.SelectorOf("swapExactIn(address,address,uint256,uint256,address)")

// SwapRouter fills swaps at oracle value minus a fixed fee.
type SwapRouter struct {
	pricer
	mu      sync.Mutex
	address address.Address
	ledger  *tokens.Ledger
	feeBps  int64
}

func NewSwapRouter(addr address.Address, ledger *tokens.Ledger, oracle pricingports.Oracle, assets ports.AssetDirectory, feeBps int64) *SwapRouter {
	return &SwapRouter{pricer: pricer{oracle: oracle, assets: assets}, address: addr, ledger: ledger, feeBps: feeBps}
}

func (r *SwapRouter) Address() address.Address { return r.address }

func (r *SwapRouter) Call(ctx context.Context, _ address.Address, caller address.Address, data []byte) error {
	dec, err := calldata.Decode(data)
	if err != nil {
		return err
	}
	if dec.Selector() != selSwapExactIn {
		return ErrUnknownSelector
	}
	tokenIn, err := dec.Address(0)
	if err != nil {
		return err
	}
	tokenOut, err := dec.Address(1)
	if err != nil {
		return err
	}
	amountIn, err := dec.Uint(2)
	if err != nil {
		return err
	}
	minOut, err := dec.Uint(3)
	if err != nil {
		return err
	}
	recipient, err := dec.Address(4)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	valueIn, err := r.value(ctx, tokenIn, amountIn)
	if err != nil {
		return err
	}
	out, err := r.amount(ctx, tokenOut, valueIn.MulRaw(10000-r.feeBps).QuoRaw(10000))
	if err != nil {
		return err
	}
	if out.LT(minOut) {
		return ErrMinOutput
	}
	if err := r.ledger.TransferFrom(ctx, tokenIn, r.address, caller, r.address, amountIn); err != nil {
		return err
	}
	return settle(ctx, r.ledger, tokenOut, r.address, recipient, out)
}
