package pricefeed

import (
	"context"
	"errors"
	"fmt"

	pricefeedclient "github.com/Apurer/fund-ledger/internal/clients/http/pricefeed"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/adapters/feeds"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/domain"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

const priceDecimals = 18

// Quoter is the subset of the price client the feed needs.
type Quoter interface {
	GetPrice(ctx context.Context, asset string) (*pricefeedclient.Quote, error)
}

// Feed answers rounds from a remote price service.
type Feed struct {
	name   string
	client Quoter
}

// NewFeed wires a price client into a feed adapter.
func NewFeed(name string, client Quoter) *Feed {
	if name == "" {
		name = "remote"
	}
	return &Feed{name: name, client: client}
}

func (f *Feed) Name() string { return f.name }

// Latest fetches the asset's quote. A service without a quote maps to ErrNoRound.
func (f *Feed) Latest(ctx context.Context, asset address.Address) (domain.Round, error) {
	if f == nil || f.client == nil {
		return domain.Round{}, errors.New("remote price feed not configured")
	}
	quote, err := f.client.GetPrice(ctx, asset.String())
	if errors.Is(err, pricefeedclient.ErrNotQuoted) {
		return domain.Round{}, ports.ErrNoRound
	}
	if err != nil {
		return domain.Round{}, err
	}
	price, err := feeds.ParseDecimal(quote.Price, priceDecimals)
	if err != nil {
		return domain.Round{}, fmt.Errorf("%s quote for %s: %w", f.name, asset, err)
	}
	return domain.Round{Price: price, UpdatedAt: quote.UpdatedAt}, nil
}

var _ ports.Feed = (*Feed)(nil)
