package assetguards

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	"github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/calldata"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const SigApprove = "approve(address,uint256)"

var selApprove = calldata.SelectorOf(SigApprove)

// Token guards plain fungible assets held directly in custody. It also
// authorizes approvals on those assets towards contracts that have a guard.
type Token struct {
	tokens    ports.TokenReader
	contracts ports.ContractDirectory
}

func NewToken(tokens ports.TokenReader, contracts ports.ContractDirectory) *Token {
	return &Token{tokens: tokens, contracts: contracts}
}

func (g *Token) Tag() domain.Tag { return domain.TagToken }

func (g *Token) Name() string { return "token" }

func (g *Token) Balance(ctx context.Context, fund, asset address.Address) (sdkmath.Int, error) {
	return g.tokens.BalanceOf(ctx, asset, fund)
}

// Authorize allows approve(spender, amount) when spender is a guarded contract.
func (g *Token) Authorize(_ context.Context, fund domain.FundContext, target address.Address, data []byte) (domain.Authorization, error) {
	dec, err := calldata.Decode(data)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if dec.Selector() != selApprove {
		return domain.Authorization{}, domain.ErrSelectorNotAllowed.With("%s on token", dec.Selector())
	}
	if !fund.Supports(target) {
		return domain.Authorization{}, domain.ErrUnsupportedAsset.With("%s", target)
	}
	spender, err := dec.Address(0)
	if err != nil {
		return domain.Authorization{}, reason.Reject(g.Name(), err.Error())
	}
	if _, ok := g.contracts.ContractGuard(spender); !ok {
		return domain.Authorization{}, reason.Reject(g.Name(), "unsupported spender approval")
	}
	return domain.Authorization{Guard: g.Name(), OpTag: "approve", Assets: []address.Address{target}}, nil
}

var (
	_ ports.AssetGuard    = (*Token)(nil)
	_ ports.ContractGuard = (*Token)(nil)
)
