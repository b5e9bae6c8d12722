package fundserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions)
}

// NewRouterWithGinEngine adds the API routes to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		switch route.Method {
		case http.MethodGet:
			router.GET(route.Pattern, route.HandlerFunc)
		case http.MethodPost:
			router.POST(route.Pattern, route.HandlerFunc)
		case http.MethodPut:
			router.PUT(route.Pattern, route.HandlerFunc)
		case http.MethodPatch:
			router.PATCH(route.Pattern, route.HandlerFunc)
		case http.MethodDelete:
			router.DELETE(route.Pattern, route.HandlerFunc)
		}
	}
	return router
}

// DefaultHandleFunc answers routes that have no handler wired.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

// ApiHandleFunctions groups the API handlers.
type ApiHandleFunctions struct {
	FundAPI       FundAPI
	GovernanceAPI GovernanceAPI
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	f := &handleFunctions.FundAPI
	g := &handleFunctions.GovernanceAPI
	return []Route{
		{"CreateFund", http.MethodPost, "/v1/funds", f.CreateFund},
		{"ListFunds", http.MethodGet, "/v1/funds", f.ListFunds},
		{"GetFund", http.MethodGet, "/v1/funds/:fund", f.GetFund},
		{"FundSummary", http.MethodGet, "/v1/funds/:fund/summary", f.FundSummary},
		{"GetHolder", http.MethodGet, "/v1/funds/:fund/holders/:holder", f.GetHolder},
		{"History", http.MethodGet, "/v1/funds/:fund/history", f.History},
		{"Deposit", http.MethodPost, "/v1/funds/:fund/deposits", f.Deposit},
		{"Withdraw", http.MethodPost, "/v1/funds/:fund/withdrawals", f.Withdraw},
		{"Transfer", http.MethodPost, "/v1/funds/:fund/transfers", f.Transfer},
		{"Execute", http.MethodPost, "/v1/funds/:fund/executions", f.Execute},
		{"ChangeAssets", http.MethodPatch, "/v1/funds/:fund/assets", f.ChangeAssets},
		{"MintManagerFee", http.MethodPost, "/v1/funds/:fund/fees/mint", f.MintManagerFee},
		{"SetFeeNumerators", http.MethodPut, "/v1/funds/:fund/fees", f.SetFeeNumerators},
		{"AnnounceFeeIncrease", http.MethodPost, "/v1/funds/:fund/fees/proposal", f.AnnounceFeeIncrease},
		{"CommitFeeIncrease", http.MethodPost, "/v1/funds/:fund/fees/proposal/commit", f.CommitFeeIncrease},
		{"RenounceFeeIncrease", http.MethodDelete, "/v1/funds/:fund/fees/proposal", f.RenounceFeeIncrease},
		{"AddMembers", http.MethodPost, "/v1/funds/:fund/members", f.AddMembers},
		{"RemoveMembers", http.MethodDelete, "/v1/funds/:fund/members", f.RemoveMembers},
		{"SetMembershipCollection", http.MethodPut, "/v1/funds/:fund/membership-collections/:collection", f.SetMembershipCollection},
		{"SetTrader", http.MethodPut, "/v1/funds/:fund/trader", f.SetTrader},
		{"ChangeManager", http.MethodPut, "/v1/funds/:fund/manager", f.ChangeManager},
		{"SetMinDepositUSD", http.MethodPut, "/v1/funds/:fund/min-deposit", f.SetMinDepositUSD},
		{"MigrateFund", http.MethodPost, "/v1/funds/:fund/migrations", f.MigrateFund},

		{"GetSettings", http.MethodGet, "/v1/governance/settings", g.GetSettings},
		{"SetPaused", http.MethodPut, "/v1/governance/pause", g.SetPaused},
		{"SetFundPaused", http.MethodPut, "/v1/governance/funds/:fund/pause", g.SetFundPaused},
		{"GetPrice", http.MethodGet, "/v1/prices/:asset", g.GetPrice},
		{"PushPrice", http.MethodPut, "/v1/prices/:asset", g.PushPrice},
	}
}
