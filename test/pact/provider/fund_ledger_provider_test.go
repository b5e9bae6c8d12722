//go:build pact
// +build pact

package provider_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	pacttest "github.com/Apurer/fund-ledger/test/pact"

	fundserver "github.com/Apurer/fund-ledger/go"
	"github.com/Apurer/fund-ledger/internal/app/ledger"
	fundsobs "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/observability"

	"github.com/gin-gonic/gin"
	"github.com/pact-foundation/pact-go/v2/models"
	pactprovider "github.com/pact-foundation/pact-go/v2/provider"
	"github.com/stretchr/testify/require"
)

func TestFundLedgerProviderPact(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app := newContractProviderApp(t)
	pactFile := filepath.ToSlash(pacttest.PactFile(t))
	if _, err := os.Stat(pactFile); errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pact file not found at %s - run the pact consumer tests first", pactFile)
	} else {
		require.NoError(t, err)
	}

	reset := func(setup bool, _ models.ProviderState) (models.ProviderStateResponse, error) {
		if setup {
			return nil, app.reset()
		}
		return nil, nil
	}
	verifier := pactprovider.NewVerifier()
	err := verifier.VerifyProvider(t, pactprovider.VerifyRequest{
		ProviderBaseURL: app.server.URL,
		Provider:        pacttest.ProviderName,
		PactFiles:       []string{pactFile},
		StateHandlers: models.StateHandlers{
			pacttest.StateLedgerBaseline: reset,
			pacttest.StateFundMissing:    reset,
		},
		BeforeEach: app.reset,
	})
	require.NoError(t, err)
}

// contractProviderApp serves a freshly bootstrapped ledger after every reset.
type contractProviderApp struct {
	router atomic.Pointer[gin.Engine]
	server *httptest.Server
}

func newContractProviderApp(t testing.TB) *contractProviderApp {
	t.Helper()
	app := &contractProviderApp{}
	require.NoError(t, app.reset())
	app.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.router.Load().ServeHTTP(w, r)
	}))
	t.Cleanup(app.server.Close)
	return app
}

func (a *contractProviderApp) reset() error {
	file := &ledger.File{}
	if err := ledger.Parse([]byte(pacttest.LedgerConfig), file); err != nil {
		return err
	}
	sys, err := ledger.Build(file, ledger.Options{})
	if err != nil {
		return err
	}
	service := fundsobs.New(sys.Service)
	handlers := fundserver.ApiHandleFunctions{
		FundAPI:       fundserver.NewFundAPI(service, nil),
		GovernanceAPI: fundserver.NewGovernanceAPI(sys.Governance, sys.Oracle, sys.Manual, sys.Clock),
	}
	router := gin.New()
	router.Use(gin.Recovery())
	a.router.Store(fundserver.NewRouterWithGinEngine(router, handlers))
	return nil
}
