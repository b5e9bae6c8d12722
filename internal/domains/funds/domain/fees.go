package domain

import (
	"time"

	sdkmath "cosmossdk.io/math"

	govdomain "github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const (
	// FeeDenominator is the denominator of every fee numerator.
	FeeDenominator = 10000
	// SecondsPerYear annualizes the management fee.
	SecondsPerYear = 365 * 24 * 60 * 60
)

// Precision is 1.0 in share price terms.
var Precision = sdkmath.NewIntWithDecimal(1, 18)

// FeeNumerators are the three fee rates of a fund.
type FeeNumerators struct {
	Performance uint64
	Management  uint64
	Entry       uint64
}

// ProposalState is the state of the fee-increase timelock.
type ProposalState int

const (
	NoProposal ProposalState = iota
	Proposed
)

func (s ProposalState) String() string {
	if s == Proposed {
		return "proposed"
	}
	return "none"
}

// FeeProposal is an announced fee increase waiting for its delay.
type FeeProposal struct {
	Numerators  FeeNumerators
	AnnouncedAt time.Time
}

// FeeSchedule is the fee configuration and accrual checkpoint of a fund.
type FeeSchedule struct {
	FeeNumerators
	LastFeeMintTime         time.Time
	TokenPriceAtLastFeeMint sdkmath.Int
	Proposal                *FeeProposal
}

func (f FeeSchedule) State() ProposalState {
	if f.Proposal == nil {
		return NoProposal
	}
	return Proposed
}

// CheckMaxima fails when any numerator exceeds the governance maximum.
func (n FeeNumerators) CheckMaxima(limits govdomain.FeeLimits) error {
	switch {
	case n.Performance > limits.MaxPerformance:
		return ErrFeeTooHigh.With("performance %d > %d", n.Performance, limits.MaxPerformance)
	case n.Management > limits.MaxManagement:
		return ErrFeeTooHigh.With("management %d > %d", n.Management, limits.MaxManagement)
	case n.Entry > limits.MaxEntry:
		return ErrFeeTooHigh.With("entry %d > %d", n.Entry, limits.MaxEntry)
	}
	return nil
}

// Announce records a proposal, replacing any pending one.
func (f *FeeSchedule) Announce(next FeeNumerators, limits govdomain.FeeLimits, now time.Time) error {
	if err := next.CheckMaxima(limits); err != nil {
		return err
	}
	if next.Performance > f.Performance && next.Performance-f.Performance > limits.MaxPerformanceIncrease {
		return ErrFeeChangeTooLarge.With("performance +%d > %d", next.Performance-f.Performance, limits.MaxPerformanceIncrease)
	}
	if next.Management > f.Management && next.Management-f.Management > limits.MaxManagementIncrease {
		return ErrFeeChangeTooLarge.With("management +%d > %d", next.Management-f.Management, limits.MaxManagementIncrease)
	}
	f.Proposal = &FeeProposal{Numerators: next, AnnouncedAt: now}
	return nil
}

// Commit applies the proposal once the delay has elapsed.
func (f *FeeSchedule) Commit(limits govdomain.FeeLimits, now time.Time) (FeeNumerators, error) {
	if f.Proposal == nil {
		return FeeNumerators{}, ErrNoFeeProposal
	}
	validAt := f.Proposal.AnnouncedAt.Add(limits.IncreaseDelay)
	if now.Before(validAt) {
		return FeeNumerators{}, reason.NewTiming(ErrFeeIncreaseDelayActive, validAt)
	}
	if err := f.Proposal.Numerators.CheckMaxima(limits); err != nil {
		return FeeNumerators{}, err
	}
	f.FeeNumerators = f.Proposal.Numerators
	f.Proposal = nil
	return f.FeeNumerators, nil
}

// Renounce drops the pending proposal.
func (f *FeeSchedule) Renounce() error {
	if f.Proposal == nil {
		return ErrNoFeeProposal
	}
	f.Proposal = nil
	return nil
}

// SetNumerators applies an immediate change. Performance and management fees may
// only go down; the entry fee may move freely within its maximum.
func (f *FeeSchedule) SetNumerators(next FeeNumerators, limits govdomain.FeeLimits) error {
	if next.Performance > f.Performance || next.Management > f.Management {
		return ErrFeeIncreaseNotAllowed
	}
	if err := next.CheckMaxima(limits); err != nil {
		return err
	}
	f.FeeNumerators = next
	return nil
}

// TokenPrice is fund value per share at 18 decimals; zero without supply.
func TokenPrice(fundValue, supply sdkmath.Int) sdkmath.Int {
	if supply.IsNil() || supply.IsZero() {
		return sdkmath.ZeroInt()
	}
	return fundValue.Mul(Precision).Quo(supply)
}

// StreamingFee is the management fee in shares accrued over elapsed.
func StreamingFee(supply sdkmath.Int, managementNumerator uint64, elapsed time.Duration) sdkmath.Int {
	if elapsed <= 0 || managementNumerator == 0 {
		return sdkmath.ZeroInt()
	}
	secs := int64(elapsed / time.Second)
	return supply.Mul(sdkmath.NewIntFromUint64(managementNumerator)).
		MulRaw(secs).
		QuoRaw(FeeDenominator).
		QuoRaw(SecondsPerYear)
}

// PerformanceFee is the fee in shares on the price gain above the high-water mark.
func PerformanceFee(supply, price, highWaterMark sdkmath.Int, performanceNumerator uint64) sdkmath.Int {
	if performanceNumerator == 0 || price.IsZero() || !price.GT(highWaterMark) {
		return sdkmath.ZeroInt()
	}
	return price.Sub(highWaterMark).
		Mul(supply).
		Mul(sdkmath.NewIntFromUint64(performanceNumerator)).
		QuoRaw(FeeDenominator).
		Quo(price)
}

// AvailableManagerFee is the total fee in shares mintable at now.
func (f FeeSchedule) AvailableManagerFee(fundValue, supply sdkmath.Int, now time.Time) sdkmath.Int {
	if supply.IsNil() || supply.IsZero() || fundValue.IsNil() || fundValue.IsZero() {
		return sdkmath.ZeroInt()
	}
	price := TokenPrice(fundValue, supply)
	perf := PerformanceFee(supply, price, orZero(f.TokenPriceAtLastFeeMint), f.Performance)
	streaming := StreamingFee(supply, f.Management, now.Sub(f.LastFeeMintTime))
	return perf.Add(streaming)
}

// SplitProtocolFee divides minted fee shares between manager and treasury.
func SplitProtocolFee(shares sdkmath.Int, numerator, denominator uint64) (manager, protocol sdkmath.Int) {
	if denominator == 0 || shares.IsZero() {
		return shares, sdkmath.ZeroInt()
	}
	protocol = shares.Mul(sdkmath.NewIntFromUint64(numerator)).Quo(sdkmath.NewIntFromUint64(denominator))
	return shares.Sub(protocol), protocol
}
