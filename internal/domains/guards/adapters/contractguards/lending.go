package contractguards

import (
	"context"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const (
	SigSupply   = "supply(address,uint256,address)"
	SigWithdraw = "withdraw(address,uint256,address)"
	SigBorrow   = "borrow(address,uint256,address)"
	SigRepay    = "repay(address,uint256,address)"
)

var lendingOps = map[calldata.Selector]string{
	calldata.SelectorOf(SigSupply):   "lending.supply",
	calldata.SelectorOf(SigWithdraw): "lending.withdraw",
	calldata.SelectorOf(SigBorrow):   "lending.borrow",
	calldata.SelectorOf(SigRepay):    "lending.repay",
}

// LendingMarket guards supply, withdraw, borrow and repay on a lending market.
// The market position itself must be a supported asset so its value is counted.
type LendingMarket struct{}

func NewLendingMarket() *LendingMarket { return &LendingMarket{} }

func (g *LendingMarket) Name() string { return "lending_market" }

func (g *LendingMarket) Authorize(_ context.Context, fund domain.FundContext, target address.Address, data []byte) (domain.Authorization, error) {
	dec, err := calldata.Decode(data)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	op, ok := lendingOps[dec.Selector()]
	if !ok {
		return domain.Authorization{}, domain.ErrSelectorNotAllowed.With("%s on %s", dec.Selector(), g.Name())
	}
	asset, err := dec.Address(0)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	beneficiary, err := dec.Address(2)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if !fund.Supports(target) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("lending position %s", target)
	}
	if !fund.Supports(asset) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("%s", asset)
	}
	if beneficiary != fund.Fund {
		return domain.Authorization{}, domain.ErrInvalidRecipient.With("%s", beneficiary)
	}
	return domain.Authorization{Guard: g.Name(), OpTag: op, Assets: []address.Address{asset, target}}, nil
}

var _ ports.ContractGuard = (*LendingMarket)(nil)
