package ledger

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	govdomain "github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// Price feed kinds accepted in the bootstrap file.
const (
	FeedPeg    = "peg"
	FeedStatic = "static"
	FeedManual = "manual"
	// FeedHTTP polls a remote price service at feed.url.
	FeedHTTP = "http"
)

// File is the bootstrap configuration: governance settings plus the assets,
// price feeds and simulated markets a deployment starts with.
type File struct {
	Governance struct {
		Owner                 string        `yaml:"owner"`
		MaxSupportedAssets    int           `yaml:"max_supported_assets"`
		MaxPriceAge           time.Duration `yaml:"max_price_age"`
		DefaultCooldown       time.Duration `yaml:"default_cooldown"`
		DefaultMinDepositUSD  string        `yaml:"default_min_deposit_usd"`
		CooldownExempt        []string      `yaml:"cooldown_exempt"`
		MembershipCollections []string      `yaml:"membership_collections"`
		CustomCooldownCallers []struct {
			Caller   string        `yaml:"caller"`
			Cooldown time.Duration `yaml:"cooldown"`
		} `yaml:"custom_cooldown_callers"`
		ProtocolFee struct {
			Numerator   uint64 `yaml:"numerator"`
			Denominator uint64 `yaml:"denominator"`
			Treasury    string `yaml:"treasury"`
		} `yaml:"protocol_fee"`
		Fees *struct {
			MaxPerformance         uint64        `yaml:"max_performance"`
			MaxManagement          uint64        `yaml:"max_management"`
			MaxEntry               uint64        `yaml:"max_entry"`
			MaxPerformanceIncrease uint64        `yaml:"max_performance_increase"`
			MaxManagementIncrease  uint64        `yaml:"max_management_increase"`
			IncreaseDelay          time.Duration `yaml:"increase_delay"`
		} `yaml:"fees"`
	} `yaml:"governance"`
	Assets []struct {
		Address  string `yaml:"address"`
		Symbol   string `yaml:"symbol"`
		Decimals uint8  `yaml:"decimals"`
		Feed     struct {
			Kind  string `yaml:"kind"`
			Price string `yaml:"price"`
			URL   string `yaml:"url"`
		} `yaml:"feed"`
	} `yaml:"assets"`
	SwapRouters []struct {
		Address     string `yaml:"address"`
		FeeBps      int64  `yaml:"fee_bps"`
		SlippageBps int64  `yaml:"slippage_bps"`
	} `yaml:"swap_routers"`
	LendingPools []struct {
		Address string `yaml:"address"`
	} `yaml:"lending_pools"`
	PerpMarkets []struct {
		Address      string `yaml:"address"`
		MarginAsset  string `yaml:"margin_asset"`
		IndexAsset   string `yaml:"index_asset"`
		MinMargin    string `yaml:"min_margin"`
		MaxPositions int    `yaml:"max_positions"`
	} `yaml:"perp_markets"`
	// LPStaking is the optional staking contract that holds LP tokens for funds.
	LPStaking string `yaml:"lp_staking"`
	LPPools   []struct {
		Address     string `yaml:"address"`
		Symbol      string `yaml:"symbol"`
		Token0      string `yaml:"token0"`
		Token1      string `yaml:"token1"`
		Reserve0    string `yaml:"reserve0"`
		Reserve1    string `yaml:"reserve1"`
		TotalSupply string `yaml:"total_supply"`
	} `yaml:"lp_pools"`
	OptionVaults []struct {
		Address string `yaml:"address"`
		Minimum string `yaml:"minimum"`
	} `yaml:"option_vaults"`
	Balances []struct {
		Asset  string `yaml:"asset"`
		Holder string `yaml:"holder"`
		Amount string `yaml:"amount"`
	} `yaml:"balances"`
}

// Load reads the bootstrap file. A missing file yields an empty config, which
// Validate rejects because an owner is required.
func Load(path string) (*File, error) {
	f := &File{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read ledger config: %w", err)
	}
	if len(data) > 0 {
		if err := Parse(data, f); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("LEDGER_OWNER"); v != "" {
		f.Governance.Owner = v
	}
	return f, nil
}

// Parse decodes YAML into f.
func Parse(data []byte, f *File) error {
	if err := yaml.Unmarshal(data, f); err != nil {
		return fmt.Errorf("parse ledger config: %w", err)
	}
	return nil
}

// Validate checks references between sections before anything is built.
func (f *File) Validate() error {
	if _, err := address.Parse(f.Governance.Owner); err != nil {
		return fmt.Errorf("governance.owner: %w", err)
	}
	// decimals of every configured asset, keyed by canonical address
	known := map[string]int32{}
	taken := map[string]string{}
	claim := func(field, raw string) (address.Address, error) {
		a, err := address.Parse(raw)
		if err != nil {
			return address.Address{}, fmt.Errorf("%s: %w", field, err)
		}
		if prev, ok := taken[a.String()]; ok {
			return address.Address{}, fmt.Errorf("%s: %s is already used by %s", field, a, prev)
		}
		taken[a.String()] = field
		return a, nil
	}
	for i, a := range f.Assets {
		asset, err := claim(fmt.Sprintf("assets[%d].address", i), a.Address)
		if err != nil {
			return err
		}
		if a.Decimals > 36 {
			return fmt.Errorf("assets[%d].decimals must be at most 36", i)
		}
		switch a.Feed.Kind {
		case FeedPeg, FeedManual:
		case FeedStatic:
			if _, err := feeds.ParseDecimal(a.Feed.Price, 18); err != nil {
				return fmt.Errorf("assets[%d].feed.price: %w", i, err)
			}
		case FeedHTTP:
			if u, err := url.Parse(a.Feed.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("assets[%d].feed.url must be an http(s) URL", i)
			}
		default:
			return fmt.Errorf("assets[%d].feed.kind %q is not one of peg, static, manual, http", i, a.Feed.Kind)
		}
		known[asset.String()] = int32(a.Decimals)
	}
	decimalsOf := func(field, raw string) (int32, error) {
		a, err := address.Parse(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", field, err)
		}
		decimals, ok := known[a.String()]
		if !ok {
			return 0, fmt.Errorf("%s %s is not a configured asset", field, a)
		}
		return decimals, nil
	}
	for i, r := range f.SwapRouters {
		if _, err := claim(fmt.Sprintf("swap_routers[%d].address", i), r.Address); err != nil {
			return err
		}
		if r.FeeBps < 0 || r.FeeBps >= 10000 || r.SlippageBps < 0 || r.SlippageBps >= 10000 {
			return fmt.Errorf("swap_routers[%d]: basis points must be within [0, 10000)", i)
		}
	}
	for i, p := range f.LendingPools {
		if _, err := claim(fmt.Sprintf("lending_pools[%d].address", i), p.Address); err != nil {
			return err
		}
	}
	for i, m := range f.PerpMarkets {
		if _, err := claim(fmt.Sprintf("perp_markets[%d].address", i), m.Address); err != nil {
			return err
		}
		decimals, err := decimalsOf(fmt.Sprintf("perp_markets[%d].margin_asset", i), m.MarginAsset)
		if err != nil {
			return err
		}
		if _, err := decimalsOf(fmt.Sprintf("perp_markets[%d].index_asset", i), m.IndexAsset); err != nil {
			return err
		}
		if m.MinMargin != "" {
			if _, err := feeds.ParseDecimal(m.MinMargin, decimals); err != nil {
				return fmt.Errorf("perp_markets[%d].min_margin: %w", i, err)
			}
		}
		if m.MaxPositions < 0 {
			return fmt.Errorf("perp_markets[%d].max_positions must not be negative", i)
		}
	}
	if f.LPStaking != "" {
		if _, err := claim("lp_staking", f.LPStaking); err != nil {
			return err
		}
	}
	lpTokens := map[string]bool{}
	for i, p := range f.LPPools {
		lp, err := claim(fmt.Sprintf("lp_pools[%d].address", i), p.Address)
		if err != nil {
			return err
		}
		d0, err := decimalsOf(fmt.Sprintf("lp_pools[%d].token0", i), p.Token0)
		if err != nil {
			return err
		}
		d1, err := decimalsOf(fmt.Sprintf("lp_pools[%d].token1", i), p.Token1)
		if err != nil {
			return err
		}
		if address.MustParse(p.Token0) == address.MustParse(p.Token1) {
			return fmt.Errorf("lp_pools[%d]: token0 and token1 must differ", i)
		}
		if _, err := feeds.ParseDecimal(p.Reserve0, d0); err != nil {
			return fmt.Errorf("lp_pools[%d].reserve0: %w", i, err)
		}
		if _, err := feeds.ParseDecimal(p.Reserve1, d1); err != nil {
			return fmt.Errorf("lp_pools[%d].reserve1: %w", i, err)
		}
		supply, err := feeds.ParseDecimal(p.TotalSupply, 18)
		if err != nil {
			return fmt.Errorf("lp_pools[%d].total_supply: %w", i, err)
		}
		if !supply.IsPositive() {
			return fmt.Errorf("lp_pools[%d].total_supply must be positive", i)
		}
		lpTokens[lp.String()] = true
	}
	for i, v := range f.OptionVaults {
		if _, err := claim(fmt.Sprintf("option_vaults[%d].address", i), v.Address); err != nil {
			return err
		}
		if v.Minimum != "" {
			if _, err := feeds.ParseDecimal(v.Minimum, 18); err != nil {
				return fmt.Errorf("option_vaults[%d].minimum: %w", i, err)
			}
		}
	}
	for i, b := range f.Balances {
		asset, err := address.Parse(b.Asset)
		if err != nil {
			return fmt.Errorf("balances[%d].asset: %w", i, err)
		}
		if _, ok := known[asset.String()]; !ok && !lpTokens[asset.String()] {
			return fmt.Errorf("balances[%d].asset %s is not a configured asset", i, asset)
		}
		if _, err := address.Parse(b.Holder); err != nil {
			return fmt.Errorf("balances[%d].holder: %w", i, err)
		}
	}
	return nil
}

// Settings turns the governance section into validated settings, starting from
// the defaults for anything left out.
func (f *File) Settings() (govdomain.Settings, error) {
	g := f.Governance
	owner, err := address.Parse(g.Owner)
	if err != nil {
		return govdomain.Settings{}, fmt.Errorf("governance.owner: %w", err)
	}
	s := govdomain.DefaultSettings(owner)
	if g.MaxSupportedAssets > 0 {
		s.MaxSupportedAssets = g.MaxSupportedAssets
	}
	if g.MaxPriceAge > 0 {
		s.MaxPriceAge = g.MaxPriceAge
	}
	if g.DefaultCooldown > 0 {
		s.DefaultCooldown = g.DefaultCooldown
	}
	if g.DefaultMinDepositUSD != "" {
		v, err := feeds.ParseDecimal(g.DefaultMinDepositUSD, 18)
		if err != nil {
			return govdomain.Settings{}, fmt.Errorf("governance.default_min_deposit_usd: %w", err)
		}
		s.DefaultMinDepositUSD = v
	}
	if g.ProtocolFee.Denominator > 0 {
		s.Protocol.Numerator = g.ProtocolFee.Numerator
		s.Protocol.Denominator = g.ProtocolFee.Denominator
	}
	if g.ProtocolFee.Treasury != "" {
		if s.Protocol.Treasury, err = address.Parse(g.ProtocolFee.Treasury); err != nil {
			return govdomain.Settings{}, fmt.Errorf("governance.protocol_fee.treasury: %w", err)
		}
	}
	if g.Fees != nil {
		s.Fees = govdomain.FeeLimits{
			MaxPerformance:         g.Fees.MaxPerformance,
			MaxManagement:          g.Fees.MaxManagement,
			MaxEntry:               g.Fees.MaxEntry,
			MaxPerformanceIncrease: g.Fees.MaxPerformanceIncrease,
			MaxManagementIncrease:  g.Fees.MaxManagementIncrease,
			IncreaseDelay:          g.Fees.IncreaseDelay,
		}
	}
	for _, raw := range g.CooldownExempt {
		a, err := address.Parse(raw)
		if err != nil {
			return govdomain.Settings{}, fmt.Errorf("governance.cooldown_exempt: %w", err)
		}
		s.CooldownExempt[a] = true
	}
	for _, raw := range g.MembershipCollections {
		a, err := address.Parse(raw)
		if err != nil {
			return govdomain.Settings{}, fmt.Errorf("governance.membership_collections: %w", err)
		}
		s.MembershipCollections[a] = true
	}
	for _, c := range g.CustomCooldownCallers {
		a, err := address.Parse(c.Caller)
		if err != nil {
			return govdomain.Settings{}, fmt.Errorf("governance.custom_cooldown_callers: %w", err)
		}
		if c.Cooldown <= 0 {
			return govdomain.Settings{}, errors.New("governance.custom_cooldown_callers: cooldown must be positive")
		}
		s.CustomCooldowns[a] = c.Cooldown
	}
	if err := s.Validate(); err != nil {
		return govdomain.Settings{}, err
	}
	return s, nil
}
