package mapper

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/domain"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

// ErrInvalidPayload marks request bodies that cannot be converted to use case inputs.
var ErrInvalidPayload = errors.New("invalid payload")

// SupportedAsset is the HTTP representation of a fund asset.
type SupportedAsset struct {
	Asset     string `json:"asset"`
	IsDeposit bool   `json:"isDeposit"`
}

// FeeNumerators are fee rates over a denominator of 10000.
type FeeNumerators struct {
	Performance uint64 `json:"performance"`
	Management  uint64 `json:"management"`
	Entry       uint64 `json:"entry"`
}

type FeeProposal struct {
	Fees        FeeNumerators `json:"fees"`
	AnnouncedAt time.Time     `json:"announcedAt"`
}

// CreateFund is the payload of POST /v1/funds.
type CreateFund struct {
	Manager       string           `json:"manager" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	Symbol        string           `json:"symbol"`
	Assets        []SupportedAsset `json:"assets" binding:"required"`
	Fees          FeeNumerators    `json:"fees"`
	Members       []string         `json:"members,omitempty"`
	MinDepositUSD *string          `json:"minDepositUsd,omitempty"`
}

// Fund is the HTTP representation of a fund.
type Fund struct {
	Address               string           `json:"address"`
	Name                  string           `json:"name"`
	Symbol                string           `json:"symbol"`
	Manager               string           `json:"manager"`
	Trader                string           `json:"trader,omitempty"`
	TotalSupply           string           `json:"totalSupply"`
	Assets                []SupportedAsset `json:"assets"`
	Fees                  FeeNumerators    `json:"fees"`
	FeeProposal           *FeeProposal     `json:"feeProposal,omitempty"`
	Private               bool             `json:"private"`
	Members               []string         `json:"members,omitempty"`
	MembershipCollections []string         `json:"membershipCollections,omitempty"`
	MinDepositUSD         string           `json:"minDepositUsd"`
	SchemaVersion         int              `json:"schemaVersion"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

type Deposit struct {
	Depositor      string `json:"depositor" binding:"required"`
	Recipient      string `json:"recipient,omitempty"`
	Asset          string `json:"asset" binding:"required"`
	Amount         string `json:"amount" binding:"required"`
	CustomCooldown bool   `json:"customCooldown,omitempty"`
}

type DepositReceipt struct {
	Fund           string    `json:"fund"`
	Recipient      string    `json:"recipient"`
	Asset          string    `json:"asset"`
	Amount         string    `json:"amount"`
	ValueDeposited string    `json:"valueDeposited"`
	Shares         string    `json:"shares"`
	EntryFeeShares string    `json:"entryFeeShares"`
	CooldownSecs   int64     `json:"cooldownSeconds"`
	CooldownEndsAt time.Time `json:"cooldownEndsAt"`
	TotalSupply    string    `json:"totalSupply"`
	FundValue      string    `json:"fundValue"`
}

// Withdraw burns shares. A tolerance selects the slippage-checked withdrawal.
type Withdraw struct {
	Holder               string  `json:"holder" binding:"required"`
	Recipient            string  `json:"recipient,omitempty"`
	Shares               string  `json:"shares" binding:"required"`
	SlippageToleranceBps *uint64 `json:"slippageToleranceBps,omitempty"`
}

type WithdrawnAsset struct {
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Value    string `json:"value"`
	External bool   `json:"external,omitempty"`
}

type WithdrawReceipt struct {
	Fund           string           `json:"fund"`
	Holder         string           `json:"holder"`
	Recipient      string           `json:"recipient"`
	Shares         string           `json:"shares"`
	ExpectedValue  string           `json:"expectedValue"`
	ValueWithdrawn string           `json:"valueWithdrawn"`
	Assets         []WithdrawnAsset `json:"assets"`
	TotalSupply    string           `json:"totalSupply"`
}

type Transfer struct {
	From   string `json:"from" binding:"required"`
	To     string `json:"to" binding:"required"`
	Shares string `json:"shares" binding:"required"`
}

// Execute is a call the fund makes. Data is 0x-prefixed hex calldata.
type Execute struct {
	Target string `json:"target" binding:"required"`
	Data   string `json:"data" binding:"required"`
}

type ExecutionReceipt struct {
	Fund   string `json:"fund"`
	Target string `json:"target"`
	Guard  string `json:"guard"`
	OpTag  string `json:"opTag"`
	Public bool   `json:"public"`
}

type ChangeAssets struct {
	Add    []SupportedAsset `json:"add,omitempty"`
	Remove []string         `json:"remove,omitempty"`
}

type Members struct {
	Members []string `json:"members" binding:"required"`
}

type MembershipCollection struct {
	Enabled bool `json:"enabled"`
}

type Role struct {
	Account string `json:"account"`
}

type MinDeposit struct {
	MinDepositUSD string `json:"minDepositUsd" binding:"required"`
}

type Migrate struct {
	Version int `json:"version" binding:"required"`
}

type FeeMintReceipt struct {
	Fund           string    `json:"fund"`
	ManagerShares  string    `json:"managerShares"`
	ProtocolShares string    `json:"protocolShares"`
	TokenPrice     string    `json:"tokenPrice"`
	MintedAt       time.Time `json:"mintedAt"`
}

type FeeIncreaseTicket struct {
	Fund       string    `json:"fund"`
	WorkflowID string    `json:"workflowId,omitempty"`
	ValidAt    time.Time `json:"validAt"`
}

type AssetValuation struct {
	Asset     string `json:"asset"`
	Tag       string `json:"tag"`
	IsDeposit bool   `json:"isDeposit"`
	Balance   string `json:"balance"`
	Value     string `json:"value"`
}

type FundSummary struct {
	Fund                        string           `json:"fund"`
	Name                        string           `json:"name"`
	Symbol                      string           `json:"symbol"`
	Manager                     string           `json:"manager"`
	Trader                      string           `json:"trader,omitempty"`
	Private                     bool             `json:"private"`
	TotalSupply                 string           `json:"totalSupply"`
	TotalValue                  string           `json:"totalValue"`
	Assets                      []AssetValuation `json:"assets"`
	TokenPrice                  string           `json:"tokenPrice"`
	TokenPriceWithoutManagerFee string           `json:"tokenPriceWithoutManagerFee"`
	AvailableManagerFee         string           `json:"availableManagerFee"`
	Fees                        FeeNumerators    `json:"fees"`
	ProposalState               string           `json:"proposalState"`
	FeeProposal                 *FeeProposal     `json:"feeProposal,omitempty"`
	MinDepositUSD               string           `json:"minDepositUsd"`
	SchemaVersion               int              `json:"schemaVersion"`
	Paused                      bool             `json:"paused"`
}

type Holder struct {
	Fund                     string    `json:"fund"`
	Holder                   string    `json:"holder"`
	Balance                  string    `json:"balance"`
	LastDepositTime          time.Time `json:"lastDepositTime"`
	LastCooldownSeconds      int64     `json:"lastCooldownSeconds"`
	CooldownEndsAt           time.Time `json:"cooldownEndsAt"`
	RemainingCooldownSeconds int64     `json:"remainingCooldownSeconds"`
}

// Event is one recorded ledger event.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ParseAddress reads a hex address from a request field.
func ParseAddress(field, raw string) (address.Address, error) {
	a, err := address.Parse(raw)
	if err != nil {
		return address.Zero, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, field, err)
	}
	return a, nil
}

// ParseAmount reads a non-negative base-unit integer.
func ParseAmount(field, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(strings.TrimSpace(raw))
	if !ok || v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidPayload, field)
	}
	return v, nil
}

func parseOptionalAddress(field, raw string) (address.Address, error) {
	if strings.TrimSpace(raw) == "" {
		return address.Zero, nil
	}
	return ParseAddress(field, raw)
}

func parseAddresses(field string, raw []string) ([]address.Address, error) {
	out := make([]address.Address, 0, len(raw))
	for _, r := range raw {
		a, err := ParseAddress(field, r)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func toSupportedAssets(raw []SupportedAsset) ([]domain.SupportedAsset, error) {
	out := make([]domain.SupportedAsset, 0, len(raw))
	for _, a := range raw {
		asset, err := ParseAddress("asset", a.Asset)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SupportedAsset{Asset: asset, IsDeposit: a.IsDeposit})
	}
	return out, nil
}

// ToFeeNumerators converts fee rates.
func ToFeeNumerators(f FeeNumerators) domain.FeeNumerators {
	return domain.FeeNumerators{Performance: f.Performance, Management: f.Management, Entry: f.Entry}
}

func fromFeeNumerators(f domain.FeeNumerators) FeeNumerators {
	return FeeNumerators{Performance: f.Performance, Management: f.Management, Entry: f.Entry}
}

func fromProposal(p *domain.FeeProposal) *FeeProposal {
	if p == nil {
		return nil
	}
	return &FeeProposal{Fees: fromFeeNumerators(p.Numerators), AnnouncedAt: p.AnnouncedAt}
}

func optionalAddress(a address.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func amount(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

// ToCreateFundInput converts the create payload.
func ToCreateFundInput(payload CreateFund) (types.CreateFundInput, error) {
	manager, err := ParseAddress("manager", payload.Manager)
	if err != nil {
		return types.CreateFundInput{}, err
	}
	assets, err := toSupportedAssets(payload.Assets)
	if err != nil {
		return types.CreateFundInput{}, err
	}
	members, err := parseAddresses("members", payload.Members)
	if err != nil {
		return types.CreateFundInput{}, err
	}
	input := types.CreateFundInput{
		Manager: manager,
		Name:    payload.Name,
		Symbol:  payload.Symbol,
		Assets:  assets,
		Fees:    ToFeeNumerators(payload.Fees),
		Members: members,
	}
	if payload.MinDepositUSD != nil {
		v, err := ParseAmount("minDepositUsd", *payload.MinDepositUSD)
		if err != nil {
			return types.CreateFundInput{}, err
		}
		input.MinDepositUSD = &v
	}
	return input, nil
}

// FromProjection converts a fund projection to its HTTP representation.
func FromProjection(p *types.FundProjection) Fund {
	if p == nil || p.Entity == nil {
		return Fund{}
	}
	f := p.Entity
	out := Fund{
		Address:               f.Address.String(),
		Name:                  f.Name,
		Symbol:                f.Symbol,
		Manager:               f.Manager.String(),
		Trader:                optionalAddress(f.Trader),
		TotalSupply:           amount(f.Supply),
		Assets:                make([]SupportedAsset, 0, len(f.Assets)),
		Fees:                  fromFeeNumerators(f.Fees.FeeNumerators),
		FeeProposal:           fromProposal(f.Fees.Proposal),
		Private:               f.IsPrivate(),
		Members:               address.Strings(f.MemberList()),
		MembershipCollections: address.Strings(f.MembershipCollections),
		MinDepositUSD:         amount(f.MinDepositUSD),
		SchemaVersion:         f.SchemaVersion,
		CreatedAt:             p.Metadata.CreatedAt,
		UpdatedAt:             p.Metadata.UpdatedAt,
	}
	for _, a := range f.Assets {
		out.Assets = append(out.Assets, SupportedAsset{Asset: a.Asset.String(), IsDeposit: a.IsDeposit})
	}
	return out
}

// FromProjectionList converts a list of projections.
func FromProjectionList(list []*types.FundProjection) []Fund {
	out := make([]Fund, 0, len(list))
	for _, p := range list {
		out = append(out, FromProjection(p))
	}
	return out
}

// ToDepositInput converts a deposit payload. The recipient defaults to the depositor.
func ToDepositInput(fund address.Address, payload Deposit, idempotencyKey string) (types.DepositInput, error) {
	depositor, err := ParseAddress("depositor", payload.Depositor)
	if err != nil {
		return types.DepositInput{}, err
	}
	recipient, err := parseOptionalAddress("recipient", payload.Recipient)
	if err != nil {
		return types.DepositInput{}, err
	}
	if recipient.IsZero() {
		recipient = depositor
	}
	asset, err := ParseAddress("asset", payload.Asset)
	if err != nil {
		return types.DepositInput{}, err
	}
	amt, err := ParseAmount("amount", payload.Amount)
	if err != nil {
		return types.DepositInput{}, err
	}
	return types.DepositInput{
		Fund:           fund,
		Depositor:      depositor,
		Recipient:      recipient,
		Asset:          asset,
		Amount:         amt,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

func FromDepositReceipt(r *types.DepositReceipt) DepositReceipt {
	return DepositReceipt{
		Fund:           r.Fund.String(),
		Recipient:      r.Recipient.String(),
		Asset:          r.Asset.String(),
		Amount:         amount(r.Amount),
		ValueDeposited: amount(r.ValueDeposited),
		Shares:         amount(r.Shares),
		EntryFeeShares: amount(r.EntryFeeShares),
		CooldownSecs:   int64(r.Cooldown / time.Second),
		CooldownEndsAt: r.CooldownEndsAt,
		TotalSupply:    amount(r.TotalSupply),
		FundValue:      amount(r.FundValue),
	}
}

// ToWithdrawInput converts a withdraw payload. The recipient defaults to the holder.
func ToWithdrawInput(fund address.Address, payload Withdraw) (types.WithdrawInput, error) {
	holder, err := ParseAddress("holder", payload.Holder)
	if err != nil {
		return types.WithdrawInput{}, err
	}
	recipient, err := parseOptionalAddress("recipient", payload.Recipient)
	if err != nil {
		return types.WithdrawInput{}, err
	}
	if recipient.IsZero() {
		recipient = holder
	}
	shares, err := ParseAmount("shares", payload.Shares)
	if err != nil {
		return types.WithdrawInput{}, err
	}
	return types.WithdrawInput{Fund: fund, Holder: holder, Recipient: recipient, Shares: shares}, nil
}

func FromWithdrawReceipt(r *types.WithdrawReceipt) WithdrawReceipt {
	out := WithdrawReceipt{
		Fund:           r.Fund.String(),
		Holder:         r.Holder.String(),
		Recipient:      r.Recipient.String(),
		Shares:         amount(r.Shares),
		ExpectedValue:  amount(r.ExpectedValue),
		ValueWithdrawn: amount(r.ValueWithdrawn),
		Assets:         make([]WithdrawnAsset, 0, len(r.Assets)),
		TotalSupply:    amount(r.TotalSupply),
	}
	for _, a := range r.Assets {
		out.Assets = append(out.Assets, WithdrawnAsset{
			Asset:    a.Asset.String(),
			Amount:   amount(a.Amount),
			Value:    amount(a.Value),
			External: a.External,
		})
	}
	return out
}

func ToTransferInput(fund address.Address, payload Transfer) (types.TransferInput, error) {
	from, err := ParseAddress("from", payload.From)
	if err != nil {
		return types.TransferInput{}, err
	}
	to, err := ParseAddress("to", payload.To)
	if err != nil {
		return types.TransferInput{}, err
	}
	shares, err := ParseAmount("shares", payload.Shares)
	if err != nil {
		return types.TransferInput{}, err
	}
	return types.TransferInput{Fund: fund, From: from, To: to, Shares: shares}, nil
}

func ToExecuteInput(ref types.FundRef, payload Execute) (types.ExecuteInput, error) {
	target, err := ParseAddress("target", payload.Target)
	if err != nil {
		return types.ExecuteInput{}, err
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(payload.Data), "0x"), "0X")
	data, err := hex.DecodeString(raw)
	if err != nil {
		return types.ExecuteInput{}, fmt.Errorf("%w: data: %v", ErrInvalidPayload, err)
	}
	return types.ExecuteInput{Fund: ref.Fund, Caller: ref.Caller, Target: target, Data: data}, nil
}

func FromExecutionReceipt(r *types.ExecutionReceipt) ExecutionReceipt {
	return ExecutionReceipt{Fund: r.Fund.String(), Target: r.Target.String(), Guard: r.Guard, OpTag: r.OpTag, Public: r.Public}
}

func ToChangeAssetsInput(ref types.FundRef, payload ChangeAssets) (types.ChangeAssetsInput, error) {
	add, err := toSupportedAssets(payload.Add)
	if err != nil {
		return types.ChangeAssetsInput{}, err
	}
	remove, err := parseAddresses("remove", payload.Remove)
	if err != nil {
		return types.ChangeAssetsInput{}, err
	}
	return types.ChangeAssetsInput{FundRef: ref, Add: add, Remove: remove}, nil
}

func ToMembersInput(ref types.FundRef, payload Members) (types.MembersInput, error) {
	members, err := parseAddresses("members", payload.Members)
	if err != nil {
		return types.MembersInput{}, err
	}
	return types.MembersInput{FundRef: ref, Members: members}, nil
}

// ToRoleInput converts a role payload. An empty account clears the role.
func ToRoleInput(ref types.FundRef, payload Role) (types.RoleInput, error) {
	account, err := parseOptionalAddress("account", payload.Account)
	if err != nil {
		return types.RoleInput{}, err
	}
	return types.RoleInput{FundRef: ref, Account: account}, nil
}

func ToMinDepositInput(ref types.FundRef, payload MinDeposit) (types.MinDepositInput, error) {
	v, err := ParseAmount("minDepositUsd", payload.MinDepositUSD)
	if err != nil {
		return types.MinDepositInput{}, err
	}
	return types.MinDepositInput{FundRef: ref, MinDepositUSD: v}, nil
}

func FromFeeMintReceipt(r *types.FeeMintReceipt) FeeMintReceipt {
	return FeeMintReceipt{
		Fund:           r.Fund.String(),
		ManagerShares:  amount(r.ManagerShares),
		ProtocolShares: amount(r.ProtocolShares),
		TokenPrice:     amount(r.TokenPrice),
		MintedAt:       r.MintedAt,
	}
}

func FromFeeIncreaseTicket(t *ports.FeeIncreaseTicket) FeeIncreaseTicket {
	return FeeIncreaseTicket{Fund: t.Fund.String(), WorkflowID: t.WorkflowID, ValidAt: t.ValidAt}
}

func FromSummary(s *types.FundSummary) FundSummary {
	out := FundSummary{
		Fund:                        s.Fund.String(),
		Name:                        s.Name,
		Symbol:                      s.Symbol,
		Manager:                     s.Manager.String(),
		Trader:                      optionalAddress(s.Trader),
		Private:                     s.Private,
		TotalSupply:                 amount(s.TotalSupply),
		TotalValue:                  amount(s.TotalValue),
		Assets:                      make([]AssetValuation, 0, len(s.Assets)),
		TokenPrice:                  amount(s.TokenPrice),
		TokenPriceWithoutManagerFee: amount(s.TokenPriceWithoutManagerFee),
		AvailableManagerFee:         amount(s.AvailableManagerFee),
		Fees:                        fromFeeNumerators(s.Fees),
		ProposalState:               s.ProposalState.String(),
		FeeProposal:                 fromProposal(s.Proposal),
		MinDepositUSD:               amount(s.MinDepositUSD),
		SchemaVersion:               s.SchemaVersion,
		Paused:                      s.Paused,
	}
	for _, a := range s.Assets {
		out.Assets = append(out.Assets, AssetValuation{
			Asset:     a.Asset.String(),
			Tag:       string(a.Tag),
			IsDeposit: a.IsDeposit,
			Balance:   amount(a.Balance),
			Value:     amount(a.Value),
		})
	}
	return out
}

func FromHolderView(v *types.HolderView) Holder {
	return Holder{
		Fund:                     v.Fund.String(),
		Holder:                   v.Holder.String(),
		Balance:                  amount(v.Balance),
		LastDepositTime:          v.LastDepositTime,
		LastCooldownSeconds:      int64(v.LastCooldown / time.Second),
		CooldownEndsAt:           v.CooldownEndsAt,
		RemainingCooldownSeconds: int64(v.RemainingCooldown / time.Second),
	}
}

func FromEvents(events []ports.RecordedEvent) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		ev := Event{ID: e.ID, Name: e.Name, OccurredAt: e.OccurredAt}
		if json.Valid(e.Payload) {
			ev.Payload = json.RawMessage(e.Payload)
		}
		out = append(out, ev)
	}
	return out
}
