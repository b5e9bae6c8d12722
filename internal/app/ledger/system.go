// Package ledger assembles the fund ledger with its oracle, guard registry,
// governance and simulated custody from a bootstrap file.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"

	sdkmath "cosmossdk.io/math"
	"gorm.io/gorm"

	pricefeedclient "github.com/Apurer/fund-ledger/internal/clients/http/pricefeed"
	fundmemory "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/memory"
	fundspostgres "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/persistence/postgres"
	fundsqlite "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/persistence/sqlite"
	fundsapp "github.com/Apurer/fund-ledger/internal/domains/funds/application"
	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	govapp "github.com/Apurer/fund-ledger/internal/domains/governance/application"
	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/assetguards"
	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/contractguards"
	"github.com/Apurer/fund-ledger/internal/domains/guards/adapters/markets"
	guardapp "github.com/Apurer/fund-ledger/internal/domains/guards/application"
	guarddomain "github.com/Apurer/fund-ledger/internal/domains/guards/domain"
	guardports "github.com/Apurer/fund-ledger/internal/domains/guards/ports"
	remotefeed "github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/external/pricefeed"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	pricingapp "github.com/Apurer/fund-ledger/internal/domains/pricing/application"
	pricingports "github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/platform/tokens"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

// Options selects the storage backends. A nil DB keeps fund state in memory;
// an empty SQLitePath keeps the event log in memory.
type Options struct {
	DB         *gorm.DB
	SQLitePath string
	Clock      clock.Clock
}

// System is a fully wired ledger. Service is the undecorated application
// service; callers wrap it with observability as they see fit.
type System struct {
	Clock      clock.Clock
	Oracle     *pricingapp.Oracle
	Registry   *guardapp.Registry
	Governance *govapp.Service
	Tokens     *tokens.Ledger
	Router     *fundmemory.Router
	Manual     *feeds.Manual
	Service    *fundsapp.Service
	// Perps is nil when no perp market is configured.
	Perps *markets.PerpExchange
	// OptionVaults is where positions are opened; no execute path writes options.
	OptionVaults optionVaults

	remote  map[string]*remotefeed.Feed
	closers []func() error
	// simulators roll back with every failed fund operation
	simulators []fundmemory.Snapshotter
}

// Build validates the bootstrap file and wires every component.
func Build(file *File, opts Options) (*System, error) {
	if err := file.Validate(); err != nil {
		return nil, err
	}
	settings, err := file.Settings()
	if err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	s := &System{
		Clock:    clk,
		Oracle:   pricingapp.NewOracle(clk),
		Registry: guardapp.NewRegistry(),
		Tokens:   tokens.NewLedger(),
		Router:   fundmemory.NewRouter(),
		Manual:   feeds.NewManual("operator"),
		remote:   map[string]*remotefeed.Feed{},
	}
	if s.Governance, err = govapp.NewService(settings, s.Registry, s.Oracle); err != nil {
		return nil, err
	}
	if err := s.bootstrap(file, settings.Owner); err != nil {
		return nil, err
	}
	if err := s.wireService(opts); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// bootstrap performs the owner's initial governance actions.
func (s *System) bootstrap(file *File, owner address.Address) error {
	gov := s.Governance
	if err := gov.SetAssetGuard(owner, assetguards.NewToken(s.Tokens, s.Registry)); err != nil {
		return err
	}
	for _, a := range file.Assets {
		asset := address.MustParse(a.Address)
		binding := guarddomain.AssetBinding{Asset: asset, Tag: guarddomain.TagToken, Decimals: a.Decimals}
		if err := gov.RegisterAsset(owner, binding); err != nil {
			return fmt.Errorf("register %s: %w", a.Symbol, err)
		}
		feed, err := s.feed(asset, a.Feed.Kind, a.Feed.Price, a.Feed.URL)
		if err != nil {
			return fmt.Errorf("feed for %s: %w", a.Symbol, err)
		}
		if err := gov.SetPriceFeeds(owner, asset, feed); err != nil {
			return err
		}
		// tokens also answer approve calls sent through execute
		s.Router.Mount(asset, s.Tokens)
	}

	for _, r := range file.SwapRouters {
		addr := address.MustParse(r.Address)
		s.Router.Mount(addr, markets.NewSwapRouter(addr, s.Tokens, s.Oracle, s.Registry, r.FeeBps))
		if err := gov.SetContractGuard(owner, addr, contractguards.NewSwapRouter(s.Oracle, s.Registry, r.SlippageBps)); err != nil {
			return err
		}
	}

	if len(file.LendingPools) > 0 {
		pools := lendingPools{}
		for _, p := range file.LendingPools {
			addr := address.MustParse(p.Address)
			pool := markets.NewLendingPool(addr, s.Tokens, s.Oracle, s.Registry)
			pools[addr] = pool
			s.Router.Mount(addr, pool)
			s.simulators = append(s.simulators, pool)
			if err := gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: addr, Tag: guarddomain.TagLending, Decimals: 18}); err != nil {
				return err
			}
			if err := gov.SetContractGuard(owner, addr, contractguards.NewLendingMarket()); err != nil {
				return err
			}
		}
		if err := gov.SetAssetGuard(owner, assetguards.NewLending(pools, s.Oracle, s.Registry)); err != nil {
			return err
		}
	}

	if err := s.bootstrapPerps(file, owner); err != nil {
		return err
	}
	if err := s.bootstrapLiquidity(file, owner); err != nil {
		return err
	}
	if err := s.bootstrapOptions(file, owner); err != nil {
		return err
	}

	for _, b := range file.Balances {
		asset := address.MustParse(b.Asset)
		binding, err := s.Registry.Binding(asset)
		if err != nil {
			return err
		}
		amount, err := feeds.ParseDecimal(b.Amount, int32(binding.Decimals))
		if err != nil {
			return fmt.Errorf("balance of %s: %w", asset, err)
		}
		if err := s.Tokens.Mint(asset, address.MustParse(b.Holder), amount); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapPerps hosts every perp market on one exchange so a single guard
// counts open positions across them.
func (s *System) bootstrapPerps(file *File, owner address.Address) error {
	if len(file.PerpMarkets) == 0 {
		return nil
	}
	gov := s.Governance
	specs := make([]markets.PerpSpec, 0, len(file.PerpMarkets))
	for _, m := range file.PerpMarkets {
		margin := address.MustParse(m.MarginAsset)
		binding, err := s.Registry.Binding(margin)
		if err != nil {
			return err
		}
		minMargin := sdkmath.ZeroInt()
		if m.MinMargin != "" {
			if minMargin, err = feeds.ParseDecimal(m.MinMargin, int32(binding.Decimals)); err != nil {
				return fmt.Errorf("min margin of %s: %w", m.Address, err)
			}
		}
		specs = append(specs, markets.PerpSpec{
			Market:      address.MustParse(m.Address),
			MarginAsset: margin,
			IndexAsset:  address.MustParse(m.IndexAsset),
			MinMargin:   minMargin,
		})
	}
	exchange := markets.NewPerpExchange(s.Tokens, s.Oracle, s.Registry, specs...)
	s.Perps = exchange
	s.simulators = append(s.simulators, exchange)
	for i, spec := range specs {
		if err := gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: spec.Market, Tag: guarddomain.TagPerpMargin, Decimals: 18}); err != nil {
			return fmt.Errorf("register perp market %s: %w", spec.Market, err)
		}
		guard := contractguards.NewPerpMarket(exchange, file.PerpMarkets[i].MaxPositions)
		if err := gov.SetContractGuard(owner, spec.Market, guard); err != nil {
			return err
		}
		s.Router.Mount(spec.Market, exchange)
	}
	return gov.SetAssetGuard(owner, assetguards.NewPerpMargin(exchange, s.Oracle, s.Registry, 0))
}

// bootstrapLiquidity registers LP tokens with the reserves they are valued from.
// LP tokens are plain ledger tokens, so funds receive them through transfers.
func (s *System) bootstrapLiquidity(file *File, owner address.Address) error {
	if len(file.LPPools) == 0 {
		return nil
	}
	gov := s.Governance
	pools := markets.NewPools()
	s.simulators = append(s.simulators, pools)
	var staking guardports.StakingPool
	if file.LPStaking != "" {
		st := markets.NewStaking(address.MustParse(file.LPStaking), s.Tokens)
		s.simulators = append(s.simulators, st)
		staking = st
	}
	for _, p := range file.LPPools {
		lp := address.MustParse(p.Address)
		reserves := guardports.PoolReserves{Token0: address.MustParse(p.Token0), Token1: address.MustParse(p.Token1)}
		var err error
		if reserves.Reserve0, err = s.amountOf(reserves.Token0, p.Reserve0); err != nil {
			return fmt.Errorf("reserve0 of %s: %w", p.Symbol, err)
		}
		if reserves.Reserve1, err = s.amountOf(reserves.Token1, p.Reserve1); err != nil {
			return fmt.Errorf("reserve1 of %s: %w", p.Symbol, err)
		}
		if reserves.TotalSupply, err = feeds.ParseDecimal(p.TotalSupply, 18); err != nil {
			return fmt.Errorf("total supply of %s: %w", p.Symbol, err)
		}
		pools.SetReserves(lp, reserves)
		if err := gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: lp, Tag: guarddomain.TagLPShare, Decimals: 18}); err != nil {
			return fmt.Errorf("register %s: %w", p.Symbol, err)
		}
		s.Router.Mount(lp, s.Tokens)
	}
	return gov.SetAssetGuard(owner, assetguards.NewLPShare(s.Tokens, pools, staking, s.Oracle, s.Registry))
}

func (s *System) bootstrapOptions(file *File, owner address.Address) error {
	if len(file.OptionVaults) == 0 {
		return nil
	}
	gov := s.Governance
	vaults := optionVaults{}
	for _, v := range file.OptionVaults {
		addr := address.MustParse(v.Address)
		minimum := sdkmath.ZeroInt()
		if v.Minimum != "" {
			var err error
			if minimum, err = feeds.ParseDecimal(v.Minimum, 18); err != nil {
				return fmt.Errorf("minimum of %s: %w", addr, err)
			}
		}
		vault := markets.NewOptionVault(addr, s.Tokens, s.Oracle, minimum)
		vaults[addr] = vault
		s.simulators = append(s.simulators, vault)
		if err := gov.RegisterAsset(owner, guarddomain.AssetBinding{Asset: addr, Tag: guarddomain.TagOption, Decimals: 18}); err != nil {
			return fmt.Errorf("register option vault %s: %w", addr, err)
		}
	}
	s.OptionVaults = vaults
	return gov.SetAssetGuard(owner, assetguards.NewOption(vaults, s.Oracle, s.Registry, 0))
}

func (s *System) amountOf(asset address.Address, raw string) (sdkmath.Int, error) {
	binding, err := s.Registry.Binding(asset)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return feeds.ParseDecimal(raw, int32(binding.Decimals))
}

func (s *System) feed(asset address.Address, kind, price, endpoint string) (pricingports.Feed, error) {
	switch kind {
	case FeedHTTP:
		if feed, ok := s.remote[endpoint]; ok {
			return feed, nil
		}
		client, err := pricefeedclient.NewClient(endpoint, nil, pricefeedclient.WithAPIKey(os.Getenv("PRICE_FEED_API_KEY")))
		if err != nil {
			return nil, err
		}
		feed := remotefeed.NewFeed(endpoint, client)
		s.remote[endpoint] = feed
		return feed, nil
	case FeedPeg:
		return feeds.NewPeg(s.Clock), nil
	case FeedStatic:
		return feeds.NewStatic(map[address.Address]string{asset: price}, s.Clock)
	case FeedManual:
		if price != "" {
			v, err := feeds.ParseDecimal(price, 18)
			if err != nil {
				return nil, err
			}
			s.Manual.Push(asset, v, s.Clock.Now())
		}
		return s.Manual, nil
	}
	return nil, fmt.Errorf("unknown feed kind %q", kind)
}

func (s *System) wireService(opts Options) error {
	var recorder interface {
		fundsports.EventRecorder
		fundmemory.Snapshotter
	}
	if opts.SQLitePath != "" {
		r, err := fundsqlite.Open(opts.SQLitePath)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, r.Close)
		recorder = r
	} else {
		recorder = fundmemory.NewRecorder()
	}

	deps := fundsapp.Dependencies{
		Custody:  fundmemory.NewCustody(s.Tokens),
		Executor: s.Router,
		Guards:   s.Registry,
		Oracle:   s.Oracle,
		System:   s.Governance,
		Clock:    s.Clock,
		Recorder: recorder,
	}
	if opts.DB != nil {
		// custody and the event log live outside the database and roll back with it
		deps.Repository = fundspostgres.NewRepository(opts.DB)
		deps.Idempotency = fundspostgres.NewIdempotencyStore(opts.DB)
		offDB := append([]fundmemory.Snapshotter{recorder, s.Tokens}, s.simulators...)
		deps.Transactor = fundspostgres.NewTransactor(opts.DB, fundmemory.NewTransactor(offDB...))
	} else {
		repo := fundmemory.NewRepository()
		idem := fundmemory.NewIdempotencyStore()
		deps.Repository = repo
		deps.Idempotency = idem
		deps.Transactor = fundmemory.NewTransactor(append([]fundmemory.Snapshotter{repo, recorder, idem, s.Tokens}, s.simulators...)...)
	}
	s.Service = fundsapp.NewService(deps)
	return nil
}

// Close releases storage handles owned by the system.
func (s *System) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// lendingPools routes lending positions to the pool registered at the market address.
type lendingPools map[address.Address]*markets.LendingPool

func (p lendingPools) Position(ctx context.Context, market, holder address.Address) (guardports.LendingPosition, error) {
	pool, ok := p[market]
	if !ok {
		return guardports.LendingPosition{}, fmt.Errorf("%w: %s", markets.ErrUnknownMarket, market)
	}
	return pool.Position(ctx, market, holder)
}

func (p lendingPools) Unwind(ctx context.Context, market, holder address.Address, numerator, denominator sdkmath.Int) ([]guardports.Holding, error) {
	pool, ok := p[market]
	if !ok {
		return nil, fmt.Errorf("%w: %s", markets.ErrUnknownMarket, market)
	}
	return pool.Unwind(ctx, market, holder, numerator, denominator)
}

// optionVaults routes option positions to the vault at the market address.
type optionVaults map[address.Address]*markets.OptionVault

// Vault returns the vault registered at addr.
func (v optionVaults) Vault(addr address.Address) (*markets.OptionVault, bool) {
	vault, ok := v[addr]
	return vault, ok
}

func (v optionVaults) Position(ctx context.Context, market, holder address.Address) (guardports.OptionPosition, error) {
	vault, ok := v[market]
	if !ok {
		return guardports.OptionPosition{}, fmt.Errorf("%w: %s", markets.ErrUnknownMarket, market)
	}
	return vault.Position(ctx, market, holder)
}

func (v optionVaults) MinPosition(ctx context.Context, market address.Address) (sdkmath.Int, error) {
	vault, ok := v[market]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", markets.ErrUnknownMarket, market)
	}
	return vault.MinPosition(ctx, market)
}

func (v optionVaults) ClosePosition(ctx context.Context, market, holder address.Address, amount sdkmath.Int) (sdkmath.Int, error) {
	vault, ok := v[market]
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %s", markets.ErrUnknownMarket, market)
	}
	return vault.ClosePosition(ctx, market, holder, amount)
}
