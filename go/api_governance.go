package fundserver

import (
	"context"
	"net/http"
	"sort"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	govdomain "github.com/Apurer/fund-ledger/internal/domains/governance/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	pricingdomain "github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	apierrors "github.com/Apurer/fund-ledger/internal/shared/errors"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/clock"
)

const priceDecimals = 18

// Governance is the part of the governance service exposed over HTTP.
type Governance interface {
	Snapshot() govdomain.Settings
	Owner() address.Address
	SetPaused(caller address.Address, paused bool) error
	SetFundPaused(caller, fund address.Address, paused bool) error
}

// PriceReader answers aggregated and time-weighted prices.
type PriceReader interface {
	Price(ctx context.Context, asset address.Address) (pricingdomain.Quote, error)
	TWAP(ctx context.Context, asset address.Address, window time.Duration) (sdkmath.Int, error)
}

// GovernanceAPI serves system settings and the operator price feed.
type GovernanceAPI struct {
	governance Governance
	prices     PriceReader
	manual     *feeds.Manual
	clock      clock.Clock
}

// NewGovernanceAPI creates a GovernanceAPI. manual may be nil, in which case
// PushPrice answers 404.
func NewGovernanceAPI(governance Governance, prices PriceReader, manual *feeds.Manual, clk clock.Clock) GovernanceAPI {
	if clk == nil {
		clk = clock.System{}
	}
	return GovernanceAPI{governance: governance, prices: prices, manual: manual, clock: clk}
}

// FeeLimits is the wire form of governance fee limits.
type FeeLimits struct {
	MaxPerformance         uint64 `json:"maxPerformance"`
	MaxManagement          uint64 `json:"maxManagement"`
	MaxEntry               uint64 `json:"maxEntry"`
	MaxPerformanceIncrease uint64 `json:"maxPerformanceIncrease"`
	MaxManagementIncrease  uint64 `json:"maxManagementIncrease"`
	IncreaseDelaySeconds   int64  `json:"increaseDelaySeconds"`
}

// Settings is the wire form of the governance settings.
type Settings struct {
	Owner                  string    `json:"owner"`
	Paused                 bool      `json:"paused"`
	PausedFunds            []string  `json:"pausedFunds"`
	Fees                   FeeLimits `json:"fees"`
	MaxSupportedAssets     int       `json:"maxSupportedAssets"`
	ProtocolFeeNumerator   uint64    `json:"protocolFeeNumerator"`
	ProtocolFeeDenominator uint64    `json:"protocolFeeDenominator"`
	ProtocolTreasury       string    `json:"protocolTreasury,omitempty"`
	MaxPriceAgeSeconds     int64     `json:"maxPriceAgeSeconds"`
	DefaultMinDepositUSD   string    `json:"defaultMinDepositUSD"`
	DefaultCooldownSeconds int64     `json:"defaultCooldownSeconds"`
}

// Pause toggles a pause flag.
type Pause struct {
	Paused bool `json:"paused"`
}

// Price is the wire form of an aggregated quote.
type Price struct {
	Asset   string `json:"asset"`
	Price   string `json:"price"`
	AsOf    string `json:"asOf"`
	Sources int    `json:"sources"`
	TWAP    string `json:"twap,omitempty"`
}

// PushPrice carries an operator price as a decimal string in USD.
type PushPrice struct {
	Price string `json:"price" binding:"required"`
}

// Get /v1/governance/settings
func (api *GovernanceAPI) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, fromSettings(api.governance.Snapshot()))
}

// Put /v1/governance/pause
// Pauses or unpauses every fund
func (api *GovernanceAPI) SetPaused(c *gin.Context) {
	caller, ok := bindCaller(c)
	if !ok {
		return
	}
	var payload Pause
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	if err := api.governance.SetPaused(caller, payload.Paused); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSettings(api.governance.Snapshot()))
}

// Put /v1/governance/funds/:fund/pause
func (api *GovernanceAPI) SetFundPaused(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload Pause
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	if err := api.governance.SetFundPaused(ref.Caller, ref.Fund, payload.Paused); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromSettings(api.governance.Snapshot()))
}

// Get /v1/prices/:asset
// Returns the aggregated price, plus a time-weighted average when twap is given
func (api *GovernanceAPI) GetPrice(c *gin.Context) {
	asset, ok := bindAddressParam(c, "asset")
	if !ok {
		return
	}
	var window string
	if err := runtime.BindQueryParameter("form", true, false, "twap", c.Request.URL.Query(), &window); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	quote, err := api.prices.Price(c.Request.Context(), asset)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := Price{
		Asset:   quote.Asset.String(),
		Price:   feeds.FormatDecimal(quote.Price, priceDecimals),
		AsOf:    quote.AsOf.UTC().Format(time.RFC3339),
		Sources: quote.Sources,
	}
	if window != "" {
		d, err := time.ParseDuration(window)
		if err != nil || d <= 0 {
			respondProblem(c, apierrors.ErrBadRequest.WithDetail("twap must be a positive duration"))
			return
		}
		twap, err := api.prices.TWAP(c.Request.Context(), asset, d)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		out.TWAP = feeds.FormatDecimal(twap, priceDecimals)
	}
	c.JSON(http.StatusOK, out)
}

// Put /v1/prices/:asset
// Pushes an operator price into the manual feed; governance only
func (api *GovernanceAPI) PushPrice(c *gin.Context) {
	if api.manual == nil {
		respondProblem(c, apierrors.NewNotFoundProblem("price feed", "manual"))
		return
	}
	asset, ok := bindAddressParam(c, "asset")
	if !ok {
		return
	}
	caller, ok := bindCaller(c)
	if !ok {
		return
	}
	if caller != api.governance.Owner() {
		respondServiceError(c, govdomain.ErrOnlyGovernance.With("caller %s", caller))
		return
	}
	var payload PushPrice
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	price, err := feeds.ParseDecimal(payload.Price, priceDecimals)
	if err != nil || !price.IsPositive() {
		respondProblem(c, apierrors.NewValidationProblem(map[string]string{"price": "must be a positive decimal"}))
		return
	}
	api.manual.Push(asset, price, api.clock.Now())
	c.Status(http.StatusNoContent)
}

func fromSettings(s govdomain.Settings) Settings {
	paused := make([]string, 0, len(s.PausedFunds))
	for fund, p := range s.PausedFunds {
		if p {
			paused = append(paused, fund.String())
		}
	}
	sort.Strings(paused)
	out := Settings{
		Owner:       s.Owner.String(),
		Paused:      s.Paused,
		PausedFunds: paused,
		Fees: FeeLimits{
			MaxPerformance:         s.Fees.MaxPerformance,
			MaxManagement:          s.Fees.MaxManagement,
			MaxEntry:               s.Fees.MaxEntry,
			MaxPerformanceIncrease: s.Fees.MaxPerformanceIncrease,
			MaxManagementIncrease:  s.Fees.MaxManagementIncrease,
			IncreaseDelaySeconds:   int64(s.Fees.IncreaseDelay / time.Second),
		},
		MaxSupportedAssets:     s.MaxSupportedAssets,
		ProtocolFeeNumerator:   s.Protocol.Numerator,
		ProtocolFeeDenominator: s.Protocol.Denominator,
		MaxPriceAgeSeconds:     int64(s.MaxPriceAge / time.Second),
		DefaultMinDepositUSD:   "0",
		DefaultCooldownSeconds: int64(s.DefaultCooldown / time.Second),
	}
	if !s.Protocol.Treasury.IsZero() {
		out.ProtocolTreasury = s.Protocol.Treasury.String()
	}
	if !s.DefaultMinDepositUSD.IsNil() {
		out.DefaultMinDepositUSD = s.DefaultMinDepositUSD.String()
	}
	return out
}
