package domain

import (
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

var (
	ErrOnlyGovernance  = reason.New(reason.ClassPolicy, "OnlyGovernance", "caller is not the governance owner")
	ErrInvalidSettings = errors.New("invalid governance settings")
)

// FeeLimits bounds what managers may charge and how fast they may raise it.
// Numerators are over a denominator of 10000.
type FeeLimits struct {
	MaxPerformance         uint64
	MaxManagement          uint64
	MaxEntry               uint64
	MaxPerformanceIncrease uint64
	MaxManagementIncrease  uint64
	IncreaseDelay          time.Duration
}

// ProtocolFee is the share of minted manager fees routed to the treasury.
type ProtocolFee struct {
	Numerator   uint64
	Denominator uint64
	Treasury    address.Address
}

// Settings is the complete system-wide state governed by the owner.
type Settings struct {
	Owner                 address.Address
	Paused                bool
	PausedFunds           map[address.Address]bool
	Fees                  FeeLimits
	MaxSupportedAssets    int
	Protocol              ProtocolFee
	MaxPriceAge           time.Duration
	DefaultMinDepositUSD  sdkmath.Int
	DefaultCooldown       time.Duration
	CustomCooldowns       map[address.Address]time.Duration
	CooldownExempt        map[address.Address]bool
	MembershipCollections map[address.Address]bool
}

// DefaultSettings returns conservative defaults owned by owner.
func DefaultSettings(owner address.Address) Settings {
	return Settings{
		Owner:       owner,
		PausedFunds: map[address.Address]bool{},
		Fees: FeeLimits{
			MaxPerformance:         5000,
			MaxManagement:          300,
			MaxEntry:               100,
			MaxPerformanceIncrease: 1000,
			MaxManagementIncrease:  100,
			IncreaseDelay:          28 * 24 * time.Hour,
		},
		MaxSupportedAssets:    12,
		Protocol:              ProtocolFee{Numerator: 10, Denominator: 100, Treasury: owner},
		MaxPriceAge:           25 * time.Hour,
		DefaultMinDepositUSD:  sdkmath.ZeroInt(),
		DefaultCooldown:       24 * time.Hour,
		CustomCooldowns:       map[address.Address]time.Duration{},
		CooldownExempt:        map[address.Address]bool{},
		MembershipCollections: map[address.Address]bool{},
	}
}

// Validate checks internal consistency.
func (s Settings) Validate() error {
	switch {
	case s.Owner.IsZero():
		return errors.Join(ErrInvalidSettings, errors.New("owner is required"))
	case s.Fees.MaxPerformance > 10000 || s.Fees.MaxManagement > 10000 || s.Fees.MaxEntry > 10000:
		return errors.Join(ErrInvalidSettings, errors.New("fee maxima exceed the denominator"))
	case s.MaxSupportedAssets <= 0:
		return errors.Join(ErrInvalidSettings, errors.New("max supported assets must be positive"))
	case s.Protocol.Denominator == 0 || s.Protocol.Numerator > s.Protocol.Denominator:
		return errors.Join(ErrInvalidSettings, errors.New("protocol fee ratio is invalid"))
	case s.MaxPriceAge <= 0:
		return errors.Join(ErrInvalidSettings, errors.New("max price age must be positive"))
	case s.DefaultCooldown < 0:
		return errors.Join(ErrInvalidSettings, errors.New("cooldown must not be negative"))
	}
	return nil
}

// Clone deep-copies the maps.
func (s Settings) Clone() Settings {
	out := s
	out.PausedFunds = cloneMap(s.PausedFunds)
	out.CustomCooldowns = cloneMap(s.CustomCooldowns)
	out.CooldownExempt = cloneMap(s.CooldownExempt)
	out.MembershipCollections = cloneMap(s.MembershipCollections)
	return out
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
