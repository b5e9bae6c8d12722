package application

import (
	"errors"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	"github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/domains/governance/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Service holds system-wide settings and is the only path that mutates guard
// bindings and price feeds. Every mutation requires the owner as caller.
type Service struct {
	mu       sync.RWMutex
	settings domain.Settings
	guards   ports.GuardBindings
	prices   ports.PriceAdmin
}

// NewService validates settings and pushes the price age into the oracle.
func NewService(settings domain.Settings, guards ports.GuardBindings, prices ports.PriceAdmin) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if prices != nil {
		if err := prices.SetMaxAge(settings.MaxPriceAge); err != nil {
			return nil, err
		}
	}
	return &Service{settings: settings.Clone(), guards: guards, prices: prices}, nil
}

func (s *Service) authorize(caller address.Address) error {
	if caller != s.settings.Owner {
		return domain.ErrOnlyGovernance.With("caller %s", caller)
	}
	return nil
}

// mutate applies fn to a copy of the settings and keeps it only if it validates.
func (s *Service) mutate(caller address.Address, fn func(next *domain.Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}
	next := s.settings.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// Snapshot returns a copy of the current settings.
func (s *Service) Snapshot() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

func (s *Service) TransferOwnership(caller, owner address.Address) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.Owner = owner
		return nil
	})
}

// SetPaused toggles the global pause.
func (s *Service) SetPaused(caller address.Address, paused bool) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.Paused = paused
		return nil
	})
}

// SetFundPaused toggles the pause of a single fund.
func (s *Service) SetFundPaused(caller, fund address.Address, paused bool) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if paused {
			next.PausedFunds[fund] = true
		} else {
			delete(next.PausedFunds, fund)
		}
		return nil
	})
}

func (s *Service) SetFeeLimits(caller address.Address, limits domain.FeeLimits) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.Fees = limits
		return nil
	})
}

func (s *Service) SetMaxSupportedAssets(caller address.Address, n int) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.MaxSupportedAssets = n
		return nil
	})
}

func (s *Service) SetProtocolFee(caller address.Address, fee domain.ProtocolFee) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if fee.Treasury.IsZero() {
			return errors.Join(domain.ErrInvalidSettings, errors.New("treasury is required"))
		}
		next.Protocol = fee
		return nil
	})
}

// SetMaxPriceAge changes how old oracle answers may be.
func (s *Service) SetMaxPriceAge(caller address.Address, d time.Duration) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.MaxPriceAge = d
		if s.prices != nil && d > 0 {
			return s.prices.SetMaxAge(d)
		}
		return nil
	})
}

func (s *Service) SetDefaultMinDepositUSD(caller address.Address, v sdkmath.Int) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if v.IsNil() || v.IsNegative() {
			return errors.Join(domain.ErrInvalidSettings, errors.New("minimum deposit must not be negative"))
		}
		next.DefaultMinDepositUSD = v
		return nil
	})
}

func (s *Service) SetDefaultCooldown(caller address.Address, d time.Duration) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		next.DefaultCooldown = d
		return nil
	})
}

// SetCustomCooldownCaller whitelists who for custom-cooldown deposits; a negative
// duration removes it.
func (s *Service) SetCustomCooldownCaller(caller, who address.Address, d time.Duration) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if d < 0 {
			delete(next.CustomCooldowns, who)
			return nil
		}
		next.CustomCooldowns[who] = d
		return nil
	})
}

func (s *Service) SetCooldownExempt(caller, receiver address.Address, exempt bool) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if exempt {
			next.CooldownExempt[receiver] = true
		} else {
			delete(next.CooldownExempt, receiver)
		}
		return nil
	})
}

func (s *Service) SetMembershipCollection(caller, collection address.Address, allowed bool) error {
	return s.mutate(caller, func(next *domain.Settings) error {
		if allowed {
			next.MembershipCollections[collection] = true
		} else {
			delete(next.MembershipCollections, collection)
		}
		return nil
	})
}

// RegisterAsset records an asset's type and precision in the guard registry.
func (s *Service) RegisterAsset(caller address.Address, binding guarddomain.AssetBinding) error {
	s.mu.RLock()
	err := s.authorize(caller)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.guards.RegisterAsset(binding)
}

// SetAssetGuard binds the guard for an asset type.
func (s *Service) SetAssetGuard(caller address.Address, guard guardports.AssetGuard) error {
	s.mu.RLock()
	err := s.authorize(caller)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return s.guards.SetAssetGuard(guard)
}

// SetContractGuard binds or, with a nil guard, unbinds a contract.
func (s *Service) SetContractGuard(caller, target address.Address, guard guardports.ContractGuard) error {
	s.mu.RLock()
	err := s.authorize(caller)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	s.guards.SetContractGuard(target, guard)
	return nil
}

// SetPriceFeeds replaces the oracle sources of an asset.
func (s *Service) SetPriceFeeds(caller, asset address.Address, feeds ...pricingports.Feed) error {
	s.mu.RLock()
	err := s.authorize(caller)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if s.prices == nil {
		return errors.New("price administration not configured")
	}
	s.prices.SetFeeds(asset, feeds...)
	return nil
}

func (s *Service) Owner() address.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Owner
}

func (s *Service) IsPaused(fund address.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Paused || s.settings.PausedFunds[fund]
}

func (s *Service) FeeLimits() domain.FeeLimits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Fees
}

func (s *Service) MaxSupportedAssets() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MaxSupportedAssets
}

func (s *Service) ProtocolFee() domain.ProtocolFee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Protocol
}

func (s *Service) DefaultMinDepositUSD() sdkmath.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.DefaultMinDepositUSD.IsNil() {
		return sdkmath.ZeroInt()
	}
	return s.settings.DefaultMinDepositUSD
}

func (s *Service) DefaultCooldown() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.DefaultCooldown
}

func (s *Service) CustomCooldown(caller address.Address) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.settings.CustomCooldowns[caller]
	return d, ok
}

func (s *Service) CooldownExempt(receiver address.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.CooldownExempt[receiver]
}

func (s *Service) IsMembershipCollection(collection address.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MembershipCollections[collection]
}

var _ ports.SystemState = (*Service)(nil)
