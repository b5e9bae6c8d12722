package fundserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"

	fundhttpmapper "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/http/mapper"
	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	apierrors "github.com/Apurer/fund-ledger/internal/shared/errors"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

const (
	// CallerHeader carries the address the request acts as.
	CallerHeader = "X-Caller"
	// IdempotencyKeyHeader makes deposits safe to retry.
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultHistoryLimit = 50
)

// FundAPI wires HTTP transport with the fund ledger service and fee workflows.
type FundAPI struct {
	service   fundsports.Service
	workflows fundsports.FeeWorkflows
}

// NewFundAPI creates a FundAPI backed by the provided service.
func NewFundAPI(service fundsports.Service, workflows fundsports.FeeWorkflows) FundAPI {
	return FundAPI{service: service, workflows: workflows}
}

// Post /v1/funds
// Creates a fund
func (api *FundAPI) CreateFund(c *gin.Context) {
	var payload fundhttpmapper.CreateFund
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToCreateFundInput(payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	created, err := api.service.CreateFund(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fundhttpmapper.FromProjection(created))
}

// Get /v1/funds
func (api *FundAPI) ListFunds(c *gin.Context) {
	list, err := api.service.ListFunds(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromProjectionList(list))
}

// Get /v1/funds/:fund
func (api *FundAPI) GetFund(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	projection, err := api.service.GetFund(c.Request.Context(), fund)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromProjection(projection))
}

// Get /v1/funds/:fund/summary
// Values the fund and reports share prices and accrued fees
func (api *FundAPI) FundSummary(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	summary, err := api.service.FundSummary(c.Request.Context(), fund)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromSummary(summary))
}

// Get /v1/funds/:fund/holders/:holder
func (api *FundAPI) GetHolder(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	holder, ok := bindAddressParam(c, "holder")
	if !ok {
		return
	}
	view, err := api.service.Holder(c.Request.Context(), fund, holder)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromHolderView(view))
}

// Get /v1/funds/:fund/history
// Lists recorded ledger events, newest first
func (api *FundAPI) History(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if err := runtime.BindQueryParameter("form", true, false, "limit", c.Request.URL.Query(), &limit); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	events, err := api.service.History(c.Request.Context(), fund, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromEvents(events))
}

// Post /v1/funds/:fund/deposits
// Deposits an asset and mints shares; retried requests with the same Idempotency-Key replay the receipt
func (api *FundAPI) Deposit(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	var payload fundhttpmapper.Deposit
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToDepositInput(fund, payload, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	deposit := api.service.Deposit
	if payload.CustomCooldown {
		deposit = api.service.DepositWithCustomCooldown
	}
	receipt, err := deposit(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromDepositReceipt(receipt))
}

// Post /v1/funds/:fund/withdrawals
func (api *FundAPI) Withdraw(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	var payload fundhttpmapper.Withdraw
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToWithdrawInput(fund, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	var receipt *types.WithdrawReceipt
	if payload.SlippageToleranceBps != nil {
		receipt, err = api.service.WithdrawSafe(c.Request.Context(), input, *payload.SlippageToleranceBps)
	} else {
		receipt, err = api.service.Withdraw(c.Request.Context(), input)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromWithdrawReceipt(receipt))
}

// Post /v1/funds/:fund/transfers
func (api *FundAPI) Transfer(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	var payload fundhttpmapper.Transfer
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToTransferInput(fund, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := api.service.Transfer(c.Request.Context(), input); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Post /v1/funds/:fund/executions
// Executes a guarded call on behalf of the fund
func (api *FundAPI) Execute(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.Execute
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToExecuteInput(ref, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	receipt, err := api.service.Execute(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromExecutionReceipt(receipt))
}

// Patch /v1/funds/:fund/assets
func (api *FundAPI) ChangeAssets(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.ChangeAssets
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToChangeAssetsInput(ref, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	api.respondFund(c)(api.service.ChangeAssets(c.Request.Context(), input))
}

// Post /v1/funds/:fund/fees/mint
// Mints the accrued manager fee; anyone may call it
func (api *FundAPI) MintManagerFee(c *gin.Context) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return
	}
	var (
		receipt *types.FeeMintReceipt
		err     error
	)
	if api.workflows != nil {
		receipt, err = api.workflows.MintManagerFee(c.Request.Context(), fund)
	} else {
		receipt, err = api.service.MintManagerFee(c.Request.Context(), fund)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundhttpmapper.FromFeeMintReceipt(receipt))
}

// Put /v1/funds/:fund/fees
// Lowers the performance or management fee, or changes the entry fee
func (api *FundAPI) SetFeeNumerators(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.FeeNumerators
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input := types.FeesInput{FundRef: ref, Fees: fundhttpmapper.ToFeeNumerators(payload)}
	api.respondFund(c)(api.service.SetFeeNumerators(c.Request.Context(), input))
}

// Post /v1/funds/:fund/fees/proposal
// Announces a fee increase and schedules its commit
func (api *FundAPI) AnnounceFeeIncrease(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.FeeNumerators
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input := types.FeesInput{FundRef: ref, Fees: fundhttpmapper.ToFeeNumerators(payload)}
	if api.workflows == nil {
		api.respondFund(c)(api.service.AnnounceFeeIncrease(c.Request.Context(), input))
		return
	}
	ticket, err := api.workflows.ScheduleFeeIncrease(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, fundhttpmapper.FromFeeIncreaseTicket(ticket))
}

// Post /v1/funds/:fund/fees/proposal/commit
func (api *FundAPI) CommitFeeIncrease(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	api.respondFund(c)(api.service.CommitFeeIncrease(c.Request.Context(), ref))
}

// Delete /v1/funds/:fund/fees/proposal
func (api *FundAPI) RenounceFeeIncrease(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	if api.workflows == nil {
		api.respondFund(c)(api.service.RenounceFeeIncrease(c.Request.Context(), ref))
		return
	}
	if err := api.workflows.CancelFeeIncrease(c.Request.Context(), ref); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Post /v1/funds/:fund/members
func (api *FundAPI) AddMembers(c *gin.Context) {
	api.changeMembers(c, api.service.AddMembers)
}

// Delete /v1/funds/:fund/members
func (api *FundAPI) RemoveMembers(c *gin.Context) {
	api.changeMembers(c, api.service.RemoveMembers)
}

func (api *FundAPI) changeMembers(c *gin.Context, apply func(context.Context, types.MembersInput) (*types.FundProjection, error)) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.Members
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToMembersInput(ref, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	api.respondFund(c)(apply(c.Request.Context(), input))
}

// Put /v1/funds/:fund/membership-collections/:collection
func (api *FundAPI) SetMembershipCollection(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	collection, ok := bindAddressParam(c, "collection")
	if !ok {
		return
	}
	var payload fundhttpmapper.MembershipCollection
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input := types.MembershipCollectionInput{FundRef: ref, Collection: collection, Enabled: payload.Enabled}
	api.respondFund(c)(api.service.SetMembershipCollection(c.Request.Context(), input))
}

// Put /v1/funds/:fund/trader
// Sets the trader; an empty account removes it
func (api *FundAPI) SetTrader(c *gin.Context) {
	api.changeRole(c, api.service.SetTrader)
}

// Put /v1/funds/:fund/manager
func (api *FundAPI) ChangeManager(c *gin.Context) {
	api.changeRole(c, api.service.ChangeManager)
}

func (api *FundAPI) changeRole(c *gin.Context, apply func(context.Context, types.RoleInput) (*types.FundProjection, error)) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.Role
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToRoleInput(ref, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	api.respondFund(c)(apply(c.Request.Context(), input))
}

// Put /v1/funds/:fund/min-deposit
func (api *FundAPI) SetMinDepositUSD(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.MinDeposit
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input, err := fundhttpmapper.ToMinDepositInput(ref, payload)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	api.respondFund(c)(api.service.SetMinDepositUSD(c.Request.Context(), input))
}

// Post /v1/funds/:fund/migrations
// Moves the fund to a newer storage schema; governance only
func (api *FundAPI) MigrateFund(c *gin.Context) {
	ref, ok := bindFundRef(c)
	if !ok {
		return
	}
	var payload fundhttpmapper.Migrate
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return
	}
	input := types.MigrateInput{FundRef: ref, Version: payload.Version}
	api.respondFund(c)(api.service.MigrateFund(c.Request.Context(), input))
}

func (api *FundAPI) respondFund(c *gin.Context) func(*types.FundProjection, error) {
	return func(projection *types.FundProjection, err error) {
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, fundhttpmapper.FromProjection(projection))
	}
}

// bindAddressParam binds a path parameter holding an address.
func bindAddressParam(c *gin.Context, name string) (address.Address, bool) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", name, c.Param(name), &raw, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return address.Zero, false
	}
	a, err := fundhttpmapper.ParseAddress(name, raw)
	if err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return address.Zero, false
	}
	return a, true
}

// bindCaller binds the acting address from the X-Caller header.
func bindCaller(c *gin.Context) (address.Address, bool) {
	values := c.Request.Header.Values(CallerHeader)
	if len(values) != 1 || strings.TrimSpace(values[0]) == "" {
		respondProblem(c, apierrors.ErrUnauthorized.WithDetail(CallerHeader+" header is required"))
		return address.Zero, false
	}
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", CallerHeader, values[0], &raw, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationHeader,
		Required:      true,
	})
	if err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return address.Zero, false
	}
	a, err := fundhttpmapper.ParseAddress(CallerHeader, raw)
	if err != nil {
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
		return address.Zero, false
	}
	return a, true
}

func bindFundRef(c *gin.Context) (types.FundRef, bool) {
	fund, ok := bindAddressParam(c, "fund")
	if !ok {
		return types.FundRef{}, false
	}
	caller, ok := bindCaller(c)
	if !ok {
		return types.FundRef{}, false
	}
	return types.FundRef{Fund: fund, Caller: caller}, true
}
