package application

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	govports "github.com/Apurer/fund-ledger/internal/domains/governance/ports"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

var _ ports.Service = (*Service)(nil)

// Dependencies are the collaborators of the ledger. Transactor, Clock, Recorder
// and Idempotency are optional.
type Dependencies struct {
	Repository  ports.Repository
	Transactor  ports.Transactor
	Custody     ports.Custody
	Executor    ports.Executor
	Guards      ports.GuardDirectory
	Oracle      pricingports.Oracle
	System      govports.SystemState
	Clock       clock.Clock
	Recorder    ports.EventRecorder
	Idempotency ports.IdempotencyStore
}

// Service orchestrates the fund ledger use cases.
type Service struct {
	repo        ports.Repository
	tx          ports.Transactor
	custody     ports.Custody
	executor    ports.Executor
	guards      ports.GuardDirectory
	oracle      pricingports.Oracle
	system      govports.SystemState
	clock       clock.Clock
	recorder    ports.EventRecorder
	idempotency ports.IdempotencyStore
	locks       fundLocks
}

// NewService wires the ledger with its dependencies.
func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:        deps.Repository,
		tx:          deps.Transactor,
		custody:     deps.Custody,
		executor:    deps.Executor,
		guards:      deps.Guards,
		oracle:      deps.Oracle,
		system:      deps.System,
		clock:       deps.Clock,
		recorder:    deps.Recorder,
		idempotency: deps.Idempotency,
	}
	if s.tx == nil {
		s.tx = directTransactor{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	return s
}

type directTransactor struct{}

func (directTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// run executes fn under the fund lock inside one unit of work.
func (s *Service) run(ctx context.Context, fund address.Address, fn func(ctx context.Context, f *domain.Fund, now time.Time) error) error {
	ctx, release, err := s.locks.enter(ctx, fund)
	defer release()
	if err != nil {
		return err
	}
	now := s.clock.Now()
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		proj, err := s.repo.Get(ctx, fund)
		if err != nil {
			return err
		}
		return fn(ctx, proj.Entity, now)
	})
}

// update runs fn and persists the fund together with the events it raised.
func (s *Service) update(ctx context.Context, fund address.Address, fn func(ctx context.Context, f *domain.Fund, now time.Time) error) (*types.FundProjection, error) {
	var saved *types.FundProjection
	err := s.run(ctx, fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := fn(ctx, f, now); err != nil {
			return err
		}
		var err error
		saved, err = s.save(ctx, f)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return saved, nil
}

func (s *Service) save(ctx context.Context, f *domain.Fund) (*types.FundProjection, error) {
	saved, err := s.repo.Save(ctx, f)
	if err != nil {
		return nil, err
	}
	return saved, s.flush(ctx, f)
}

// flush hands raised events to the recorder.
func (s *Service) flush(ctx context.Context, f *domain.Fund) error {
	events := f.Events()
	f.ClearEvents()
	if s.recorder == nil || len(events) == 0 {
		return nil
	}
	return s.recorder.Record(ctx, events...)
}

func base(f *domain.Fund, now time.Time) domain.BaseEvent {
	return domain.BaseEvent{Timestamp: now, Fund: f.Address}
}

func requireManager(f *domain.Fund, caller address.Address) error {
	if caller != f.Manager {
		return domain.ErrOnlyManager
	}
	return nil
}

func requireManagerOrTrader(f *domain.Fund, caller address.Address) error {
	if !f.IsManagerOrTrader(caller) {
		return domain.ErrOnlyManagerOrTrader
	}
	return nil
}

func (s *Service) requireActive(f *domain.Fund) error {
	if s.system.IsPaused(f.Address) {
		return domain.ErrPoolPaused
	}
	return nil
}

// CreateFund validates and persists a new fund with an empty supply.
func (s *Service) CreateFund(ctx context.Context, input types.CreateFundInput) (*types.FundProjection, error) {
	limits := s.system.FeeLimits()
	if err := input.Fees.CheckMaxima(limits); err != nil {
		return nil, err
	}
	if limit := s.system.MaxSupportedAssets(); len(input.Assets) > limit {
		return nil, domain.ErrMaxSupportedAssets.With("%d assets, limit %d", len(input.Assets), limit)
	}
	for _, a := range input.Assets {
		if err := s.checkAssetUsable(ctx, a.Asset); err != nil {
			return nil, err
		}
	}
	now := s.clock.Now()
	f, err := domain.NewFund(address.Derive("fund"), input.Manager, input.Name, input.Symbol, input.Assets, input.Fees, now)
	if err != nil {
		return nil, err
	}
	f.AddMembers(input.Members...)
	f.MinDepositUSD = s.system.DefaultMinDepositUSD()
	if input.MinDepositUSD != nil {
		if input.MinDepositUSD.IsNegative() {
			return nil, domain.ErrInvalidAmount.With("minimum deposit %s", input.MinDepositUSD)
		}
		f.MinDepositUSD = *input.MinDepositUSD
	}
	f.Raise(domain.FundCreated{
		BaseEvent: base(f, now),
		Manager:   f.Manager,
		Name:      f.Name,
		Symbol:    f.Symbol,
		Assets:    append([]domain.SupportedAsset(nil), f.Assets...),
		Fees:      f.Fees.FeeNumerators,
	})

	var saved *types.FundProjection
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		saved, err = s.save(ctx, f)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}
	return saved, nil
}

// ChangeAssets adds then removes supported assets.
func (s *Service) ChangeAssets(ctx context.Context, input types.ChangeAssetsInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManagerOrTrader(f, input.Caller); err != nil {
			return err
		}
		limit := s.system.MaxSupportedAssets()
		for _, a := range input.Add {
			if err := s.checkAssetUsable(ctx, a.Asset); err != nil {
				return err
			}
			if err := f.AddAsset(a, limit); err != nil {
				return err
			}
		}
		for _, asset := range input.Remove {
			if !f.IsSupported(asset) {
				return domain.ErrAssetNotSupported.With("%s", asset)
			}
			guard, _, err := s.guards.AssetGuard(asset)
			if err != nil {
				return err
			}
			bal, err := guard.Balance(ctx, f.Address, asset)
			if err != nil {
				return err
			}
			if !bal.IsZero() {
				return domain.ErrNonEmptyAsset.With("%s holds %s", asset, bal)
			}
			if err := f.RemoveAsset(asset); err != nil {
				return err
			}
		}
		if !f.HasDepositAsset() {
			return domain.ErrNoDepositAsset
		}
		f.Raise(domain.AssetsChanged{
			BaseEvent: base(f, now),
			Added:     input.Add,
			Removed:   input.Remove,
			Assets:    append([]domain.SupportedAsset(nil), f.Assets...),
		})
		return nil
	})
}

// AnnounceFeeIncrease starts the fee-increase timelock, replacing any pending proposal.
func (s *Service) AnnounceFeeIncrease(ctx context.Context, input types.FeesInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		limits := s.system.FeeLimits()
		if err := f.Fees.Announce(input.Fees, limits, now); err != nil {
			return err
		}
		f.Raise(domain.FeeIncreaseAnnounced{BaseEvent: base(f, now), Proposed: input.Fees, ValidAt: now.Add(limits.IncreaseDelay)})
		return nil
	})
}

// CommitFeeIncrease applies the pending proposal once its delay has elapsed.
func (s *Service) CommitFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		if err := s.accrueFees(ctx, f, now); err != nil {
			return err
		}
		fees, err := f.Fees.Commit(s.system.FeeLimits(), now)
		if err != nil {
			return err
		}
		f.Raise(domain.FeeIncreaseCommitted{BaseEvent: base(f, now), Fees: fees})
		return nil
	})
}

func (s *Service) RenounceFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		if err := f.Fees.Renounce(); err != nil {
			return err
		}
		f.Raise(domain.FeeIncreaseRenounced{BaseEvent: base(f, now)})
		return nil
	})
}

// SetFeeNumerators lowers performance or management fees, or moves the entry fee.
func (s *Service) SetFeeNumerators(ctx context.Context, input types.FeesInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(ctx context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		if err := s.accrueFees(ctx, f, now); err != nil {
			return err
		}
		previous := f.Fees.FeeNumerators
		if err := f.Fees.SetNumerators(input.Fees, s.system.FeeLimits()); err != nil {
			return err
		}
		f.Raise(domain.FeesChanged{BaseEvent: base(f, now), Previous: previous, Fees: input.Fees})
		return nil
	})
}

func (s *Service) AddMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		f.AddMembers(input.Members...)
		f.Raise(domain.MembersChanged{BaseEvent: base(f, now), Added: input.Members, Collections: f.MembershipCollections})
		return nil
	})
}

func (s *Service) RemoveMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		f.RemoveMembers(input.Members...)
		f.Raise(domain.MembersChanged{BaseEvent: base(f, now), Removed: input.Members, Collections: f.MembershipCollections})
		return nil
	})
}

// SetMembershipCollection lets holders of a governance-approved collection join the fund.
func (s *Service) SetMembershipCollection(ctx context.Context, input types.MembershipCollectionInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		if input.Enabled && !s.system.IsMembershipCollection(input.Collection) {
			return domain.ErrCollectionNotAllowed.With("%s", input.Collection)
		}
		f.SetMembershipCollection(input.Collection, input.Enabled)
		f.Raise(domain.MembersChanged{BaseEvent: base(f, now), Collections: f.MembershipCollections})
		return nil
	})
}

func (s *Service) SetTrader(ctx context.Context, input types.RoleInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		f.Trader = input.Account
		f.Raise(domain.TraderChanged{BaseEvent: base(f, now), Trader: input.Account})
		return nil
	})
}

func (s *Service) ChangeManager(ctx context.Context, input types.RoleInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if err := requireManager(f, input.Caller); err != nil {
			return err
		}
		if input.Account.IsZero() {
			return domain.ErrInvalidFund.With("manager is required")
		}
		previous := f.Manager
		f.Manager = input.Account
		f.Raise(domain.ManagerChanged{BaseEvent: base(f, now), Previous: previous, Manager: input.Account})
		return nil
	})
}

// SetMinDepositUSD may be called by the manager or by governance.
func (s *Service) SetMinDepositUSD(ctx context.Context, input types.MinDepositInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if input.Caller != f.Manager && input.Caller != s.system.Owner() {
			return domain.ErrOnlyManager
		}
		if input.MinDepositUSD.IsNil() || input.MinDepositUSD.IsNegative() {
			return domain.ErrInvalidAmount.With("minimum deposit must not be negative")
		}
		f.MinDepositUSD = input.MinDepositUSD
		f.Raise(domain.MinDepositChanged{BaseEvent: base(f, now), MinDepositUSD: input.MinDepositUSD})
		return nil
	})
}

// MigrateFund upgrades the storage schema of a fund. Governance only.
func (s *Service) MigrateFund(ctx context.Context, input types.MigrateInput) (*types.FundProjection, error) {
	return s.update(ctx, input.Fund, func(_ context.Context, f *domain.Fund, now time.Time) error {
		if input.Caller != s.system.Owner() {
			return domain.ErrOnlyGovernance
		}
		from := f.SchemaVersion
		if err := f.Migrate(input.Version); err != nil {
			return err
		}
		f.Raise(domain.FundMigrated{BaseEvent: base(f, now), From: from, To: input.Version})
		return nil
	})
}

func (s *Service) GetFund(ctx context.Context, fund address.Address) (*types.FundProjection, error) {
	proj, err := s.repo.Get(ctx, fund)
	if err != nil {
		return nil, mapError(err)
	}
	return proj, nil
}

func (s *Service) ListFunds(ctx context.Context) ([]*types.FundProjection, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return list, nil
}

// History returns the newest recorded events of a fund.
func (s *Service) History(ctx context.Context, fund address.Address, limit int) ([]ports.RecordedEvent, error) {
	if _, err := s.repo.Get(ctx, fund); err != nil {
		return nil, mapError(err)
	}
	if s.recorder == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	return s.recorder.History(ctx, fund, limit)
}

var errNotConfigured = errors.New("ledger collaborator not configured")
