package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPrice(t *testing.T) {
	updated := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		switch r.URL.Path {
		case "/v1/prices/0xaa":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"asset":"0xaa","price":"1.0025","updatedAt":"2025-05-01T12:00:00Z"}`))
		case "/v1/prices/0xbb":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"upstream maintenance"}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/v1/", nil, WithAPIKey("secret"))
	require.NoError(t, err)
	ctx := context.Background()

	quote, err := client.GetPrice(ctx, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, "1.0025", quote.Price)
	assert.True(t, updated.Equal(quote.UpdatedAt))

	_, err = client.GetPrice(ctx, "0xbb")
	assert.ErrorIs(t, err, ErrNotQuoted)

	_, err = client.GetPrice(ctx, "0xcc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream maintenance")
}

func TestNewClientRequiresHTTPBase(t *testing.T) {
	_, err := NewClient(" ", nil)
	assert.Error(t, err)
	_, err = NewClient("ftp://prices", nil)
	assert.Error(t, err)
}
