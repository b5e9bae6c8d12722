package ports

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// ErrNoRound is returned by feeds that have nothing to report for an asset.
var ErrNoRound = errors.New("feed has no round for asset")

// Feed is a single price source.
type Feed interface {
	Name() string
	Latest(ctx context.Context, asset address.Address) (domain.Round, error)
}

// Oracle maps an asset to its unit price in the valuation currency.
type Oracle interface {
	Price(ctx context.Context, asset address.Address) (domain.Quote, error)
	// TWAP averages sampled prices over the trailing window.
	TWAP(ctx context.Context, asset address.Address, window time.Duration) (sdkmath.Int, error)
}
