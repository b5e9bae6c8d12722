package memory

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var _ ports.Custody = (*Custody)(nil)

// Custody keeps fund assets on the in-memory token ledger.
type Custody struct {
	ledger *tokens.Ledger
}

func NewCustody(ledger *tokens.Ledger) *Custody {
	return &Custody{ledger: ledger}
}

func (c *Custody) BalanceOf(ctx context.Context, asset, holder address.Address) (sdkmath.Int, error) {
	return c.ledger.BalanceOf(ctx, asset, holder)
}

func (c *Custody) Pull(ctx context.Context, asset, depositor, fund address.Address, amount sdkmath.Int) error {
	return c.ledger.TransferFrom(ctx, asset, fund, depositor, fund, amount)
}

func (c *Custody) Push(ctx context.Context, asset, fund, recipient address.Address, amount sdkmath.Int) error {
	return c.ledger.Transfer(ctx, asset, fund, recipient, amount)
}
