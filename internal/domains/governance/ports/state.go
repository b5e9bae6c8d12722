package ports

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// SystemState is the read-only view of governance settings injected into the ledger.
type SystemState interface {
	Owner() address.Address
	IsPaused(fund address.Address) bool
	FeeLimits() domain.FeeLimits
	MaxSupportedAssets() int
	ProtocolFee() domain.ProtocolFee
	DefaultMinDepositUSD() sdkmath.Int
	DefaultCooldown() time.Duration
	// CustomCooldown reports the cooldown a whitelisted deposit caller applies.
	CustomCooldown(caller address.Address) (time.Duration, bool)
	CooldownExempt(receiver address.Address) bool
	IsMembershipCollection(collection address.Address) bool
}
