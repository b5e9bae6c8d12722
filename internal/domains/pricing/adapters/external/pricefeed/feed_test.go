package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pricefeedclient "github.com/Apurer/fund-ledger/internal/clients/http/pricefeed"
	"github.com/Apurer/fund-ledger/internal/domains/pricing/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

type stubQuoter map[string]*pricefeedclient.Quote

func (s stubQuoter) GetPrice(_ context.Context, asset string) (*pricefeedclient.Quote, error) {
	if asset == "0x00000000000000000000000000000000000000ee" {
		return nil, errors.New("connection refused")
	}
	q, ok := s[asset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pricefeedclient.ErrNotQuoted, asset)
	}
	return q, nil
}

func TestFeedLatest(t *testing.T) {
	weth := address.MustParse("0x00000000000000000000000000000000000000e1")
	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	feed := NewFeed("", stubQuoter{weth.String(): {Asset: weth.String(), Price: "2500.5", UpdatedAt: at}})
	ctx := context.Background()

	assert.Equal(t, "remote", feed.Name())
	round, err := feed.Latest(ctx, weth)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntWithDecimal(25005, 17).String(), round.Price.String())
	assert.Equal(t, at, round.UpdatedAt)

	_, err = feed.Latest(ctx, address.MustParse("0x00000000000000000000000000000000000000d1"))
	assert.ErrorIs(t, err, ports.ErrNoRound)

	_, err = feed.Latest(ctx, address.MustParse("0x00000000000000000000000000000000000000ee"))
	assert.Error(t, err)
}
