package ports

import (
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// GuardBindings is the write side of the guard registry.
type GuardBindings interface {
	RegisterAsset(binding domain.AssetBinding) error
	SetAssetGuard(guard guardports.AssetGuard) error
	SetContractGuard(target address.Address, guard guardports.ContractGuard)
}

// PriceAdmin is the write side of the price oracle.
type PriceAdmin interface {
	SetFeeds(asset address.Address, feeds ...pricingports.Feed)
	SetMaxAge(d time.Duration) error
}
