package observability

import (
	"context"
	"io"
	"log/slog"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	"github.com/Apurer/fund-ledger/internal/shared/address"
	"github.com/Apurer/fund-ledger/internal/shared/reason"
)

const tracerName = "github.com/Apurer/fund-ledger/internal/domains/funds/adapters/observability/service"

// Service decorates the fund ledger port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

func (s *Service) CreateFund(ctx context.Context, input types.CreateFundInput) (*types.FundProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.CreateFund", attribute.String("fund.manager", input.Manager.String()))
	defer span.End()

	s.logInfo(ctx, "creating fund", slog.String("manager", input.Manager.String()), slog.String("name", input.Name))
	result, err := s.inner.CreateFund(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "CreateFund", err, "failed to create fund", slog.String("manager", input.Manager.String()))
	}
	span.SetAttributes(fundAttr(result.Entity.Address))
	s.logInfo(ctx, "fund created", slog.String("fund", result.Entity.Address.String()), slog.Int("assets", len(result.Entity.Assets)))
	return result, nil
}

// Deposit mints shares for a deposit with instrumentation.
func (s *Service) Deposit(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error) {
	return s.deposit(ctx, "Deposit", input, s.inner.Deposit)
}

func (s *Service) DepositWithCustomCooldown(ctx context.Context, input types.DepositInput) (*types.DepositReceipt, error) {
	return s.deposit(ctx, "DepositWithCustomCooldown", input, s.inner.DepositWithCustomCooldown)
}

func (s *Service) deposit(ctx context.Context, op string, input types.DepositInput, next func(context.Context, types.DepositInput) (*types.DepositReceipt, error)) (*types.DepositReceipt, error) {
	attrs := []slog.Attr{
		slog.String("fund", input.Fund.String()),
		slog.String("depositor", input.Depositor.String()),
		slog.String("asset", input.Asset.String()),
		slog.String("amount", intString(input.Amount)),
	}
	ctx, span := s.startSpan(ctx, "Service."+op, fundAttr(input.Fund), attribute.String("deposit.asset", input.Asset.String()))
	defer span.End()

	s.logInfo(ctx, "depositing", attrs...)
	receipt, err := next(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, op, err, "deposit failed", attrs...)
	}
	s.metrics.recordDeposit(ctx, input.Asset)
	span.SetAttributes(attribute.String("deposit.shares", receipt.Shares.String()))
	s.logInfo(ctx, "deposited",
		slog.String("fund", receipt.Fund.String()),
		slog.String("value_usd", usd(receipt.ValueDeposited)),
		slog.String("shares", receipt.Shares.String()),
		slog.Duration("cooldown", receipt.Cooldown),
	)
	return receipt, nil
}

func (s *Service) Withdraw(ctx context.Context, input types.WithdrawInput) (*types.WithdrawReceipt, error) {
	return s.withdraw(ctx, "Withdraw", input, s.inner.Withdraw)
}

// WithdrawSafe withdraws with a realized-value tolerance.
func (s *Service) WithdrawSafe(ctx context.Context, input types.WithdrawInput, toleranceBps uint64) (*types.WithdrawReceipt, error) {
	return s.withdraw(ctx, "WithdrawSafe", input, func(ctx context.Context, input types.WithdrawInput) (*types.WithdrawReceipt, error) {
		return s.inner.WithdrawSafe(ctx, input, toleranceBps)
	})
}

func (s *Service) withdraw(ctx context.Context, op string, input types.WithdrawInput, next func(context.Context, types.WithdrawInput) (*types.WithdrawReceipt, error)) (*types.WithdrawReceipt, error) {
	attrs := []slog.Attr{
		slog.String("fund", input.Fund.String()),
		slog.String("holder", input.Holder.String()),
		slog.String("shares", intString(input.Shares)),
	}
	ctx, span := s.startSpan(ctx, "Service."+op, fundAttr(input.Fund))
	defer span.End()

	s.logInfo(ctx, "withdrawing", attrs...)
	receipt, err := next(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, op, err, "withdraw failed", attrs...)
	}
	s.metrics.recordWithdrawal(ctx, len(receipt.Assets))
	span.SetAttributes(attribute.Int("withdraw.assets", len(receipt.Assets)))
	s.logInfo(ctx, "withdrawn",
		slog.String("fund", receipt.Fund.String()),
		slog.String("expected_usd", usd(receipt.ExpectedValue)),
		slog.String("realized_usd", usd(receipt.ValueWithdrawn)),
	)
	return receipt, nil
}

func (s *Service) Transfer(ctx context.Context, input types.TransferInput) error {
	ctx, span := s.startSpan(ctx, "Service.Transfer", fundAttr(input.Fund))
	defer span.End()

	attrs := []slog.Attr{
		slog.String("fund", input.Fund.String()),
		slog.String("from", input.From.String()),
		slog.String("to", input.To.String()),
	}
	if err := s.inner.Transfer(ctx, input); err != nil {
		return s.handleError(ctx, span, "Transfer", err, "share transfer failed", attrs...)
	}
	s.logInfo(ctx, "shares transferred", attrs...)
	return nil
}

// MintManagerFee mints accrued fees with instrumentation.
func (s *Service) MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error) {
	ctx, span := s.startSpan(ctx, "Service.MintManagerFee", fundAttr(fund))
	defer span.End()

	receipt, err := s.inner.MintManagerFee(ctx, fund)
	if err != nil {
		return nil, s.handleError(ctx, span, "MintManagerFee", err, "fee mint failed", slog.String("fund", fund.String()))
	}
	if receipt.Total().IsPositive() {
		s.metrics.recordFeeMint(ctx)
		s.logInfo(ctx, "manager fee minted",
			slog.String("fund", fund.String()),
			slog.String("manager_shares", receipt.ManagerShares.String()),
			slog.String("protocol_shares", receipt.ProtocolShares.String()),
			slog.String("token_price", usd(receipt.TokenPrice)),
		)
	}
	return receipt, nil
}

// Execute forwards a guarded call with instrumentation.
func (s *Service) Execute(ctx context.Context, input types.ExecuteInput) (*types.ExecutionReceipt, error) {
	attrs := []slog.Attr{
		slog.String("fund", input.Fund.String()),
		slog.String("caller", input.Caller.String()),
		slog.String("target", input.Target.String()),
	}
	ctx, span := s.startSpan(ctx, "Service.Execute", fundAttr(input.Fund), attribute.String("execute.target", input.Target.String()))
	defer span.End()

	receipt, err := s.inner.Execute(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, "Execute", err, "execution rejected", attrs...)
	}
	s.metrics.recordExecution(ctx, receipt.Guard, receipt.OpTag)
	span.SetAttributes(attribute.String("execute.guard", receipt.Guard), attribute.String("execute.op", receipt.OpTag))
	s.logInfo(ctx, "transaction executed", append(attrs, slog.String("guard", receipt.Guard), slog.String("op", receipt.OpTag))...)
	return receipt, nil
}

func (s *Service) ChangeAssets(ctx context.Context, input types.ChangeAssetsInput) (*types.FundProjection, error) {
	return s.admin(ctx, "ChangeAssets", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.ChangeAssets(ctx, input)
	})
}

func (s *Service) AnnounceFeeIncrease(ctx context.Context, input types.FeesInput) (*types.FundProjection, error) {
	return s.admin(ctx, "AnnounceFeeIncrease", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.AnnounceFeeIncrease(ctx, input)
	})
}

func (s *Service) CommitFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error) {
	return s.admin(ctx, "CommitFeeIncrease", input, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.CommitFeeIncrease(ctx, input)
	})
}

func (s *Service) RenounceFeeIncrease(ctx context.Context, input types.FundRef) (*types.FundProjection, error) {
	return s.admin(ctx, "RenounceFeeIncrease", input, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.RenounceFeeIncrease(ctx, input)
	})
}

func (s *Service) SetFeeNumerators(ctx context.Context, input types.FeesInput) (*types.FundProjection, error) {
	return s.admin(ctx, "SetFeeNumerators", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.SetFeeNumerators(ctx, input)
	})
}

func (s *Service) AddMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error) {
	return s.admin(ctx, "AddMembers", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.AddMembers(ctx, input)
	})
}

func (s *Service) RemoveMembers(ctx context.Context, input types.MembersInput) (*types.FundProjection, error) {
	return s.admin(ctx, "RemoveMembers", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.RemoveMembers(ctx, input)
	})
}

func (s *Service) SetMembershipCollection(ctx context.Context, input types.MembershipCollectionInput) (*types.FundProjection, error) {
	return s.admin(ctx, "SetMembershipCollection", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.SetMembershipCollection(ctx, input)
	})
}

func (s *Service) SetTrader(ctx context.Context, input types.RoleInput) (*types.FundProjection, error) {
	return s.admin(ctx, "SetTrader", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.SetTrader(ctx, input)
	})
}

func (s *Service) ChangeManager(ctx context.Context, input types.RoleInput) (*types.FundProjection, error) {
	return s.admin(ctx, "ChangeManager", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.ChangeManager(ctx, input)
	})
}

func (s *Service) SetMinDepositUSD(ctx context.Context, input types.MinDepositInput) (*types.FundProjection, error) {
	return s.admin(ctx, "SetMinDepositUSD", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.SetMinDepositUSD(ctx, input)
	})
}

func (s *Service) MigrateFund(ctx context.Context, input types.MigrateInput) (*types.FundProjection, error) {
	return s.admin(ctx, "MigrateFund", input.FundRef, func(ctx context.Context) (*types.FundProjection, error) {
		return s.inner.MigrateFund(ctx, input)
	})
}

// admin instruments the manager and governance mutations, which share one shape.
func (s *Service) admin(ctx context.Context, op string, ref types.FundRef, next func(context.Context) (*types.FundProjection, error)) (*types.FundProjection, error) {
	attrs := []slog.Attr{slog.String("fund", ref.Fund.String()), slog.String("caller", ref.Caller.String())}
	ctx, span := s.startSpan(ctx, "Service."+op, fundAttr(ref.Fund))
	defer span.End()

	result, err := next(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, op, err, "fund update failed", append(attrs, slog.String("op", op))...)
	}
	s.logInfo(ctx, "fund updated", append(attrs, slog.String("op", op))...)
	return result, nil
}

func (s *Service) GetFund(ctx context.Context, fund address.Address) (*types.FundProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.GetFund", fundAttr(fund))
	defer span.End()

	result, err := s.inner.GetFund(ctx, fund)
	if err != nil {
		return nil, s.handleError(ctx, span, "GetFund", err, "failed to load fund", slog.String("fund", fund.String()))
	}
	return result, nil
}

func (s *Service) ListFunds(ctx context.Context) ([]*types.FundProjection, error) {
	ctx, span := s.startSpan(ctx, "Service.ListFunds")
	defer span.End()

	result, err := s.inner.ListFunds(ctx)
	if err != nil {
		return nil, s.handleError(ctx, span, "ListFunds", err, "failed to list funds")
	}
	span.SetAttributes(attribute.Int("fund.result.count", len(result)))
	return result, nil
}

func (s *Service) FundSummary(ctx context.Context, fund address.Address) (*types.FundSummary, error) {
	ctx, span := s.startSpan(ctx, "Service.FundSummary", fundAttr(fund))
	defer span.End()

	summary, err := s.inner.FundSummary(ctx, fund)
	if err != nil {
		return nil, s.handleError(ctx, span, "FundSummary", err, "failed to value fund", slog.String("fund", fund.String()))
	}
	span.SetAttributes(attribute.String("fund.total_value", summary.TotalValue.String()))
	return summary, nil
}

func (s *Service) Holder(ctx context.Context, fund, holder address.Address) (*types.HolderView, error) {
	ctx, span := s.startSpan(ctx, "Service.Holder", fundAttr(fund))
	defer span.End()

	view, err := s.inner.Holder(ctx, fund, holder)
	if err != nil {
		return nil, s.handleError(ctx, span, "Holder", err, "failed to load holder", slog.String("fund", fund.String()), slog.String("holder", holder.String()))
	}
	return view, nil
}

func (s *Service) History(ctx context.Context, fund address.Address, limit int) ([]ports.RecordedEvent, error) {
	ctx, span := s.startSpan(ctx, "Service.History", fundAttr(fund), attribute.Int("history.limit", limit))
	defer span.End()

	events, err := s.inner.History(ctx, fund, limit)
	if err != nil {
		return nil, s.handleError(ctx, span, "History", err, "failed to read history", slog.String("fund", fund.String()))
	}
	span.SetAttributes(attribute.Int("history.count", len(events)))
	return events, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if code := reason.Code(err); code != "" {
			attrs = append(attrs, slog.String("reason", code))
		}
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, op string, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := reason.Code(err); code != "" {
			span.SetAttributes(attribute.String("error.reason", code))
		}
	}
	s.metrics.recordFailure(ctx, op, err)
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fundAttr(fund address.Address) attribute.KeyValue {
	return attribute.String("fund.address", fund.String())
}

func intString(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}

// usd renders an 18-decimal value for humans.
func usd(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return decimal.NewFromBigInt(v.BigInt(), -18).StringFixed(2)
}

type serviceMetrics struct {
	deposits    metric.Int64Counter
	withdrawals metric.Int64Counter
	feeMints    metric.Int64Counter
	executions  metric.Int64Counter
	failures    metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	deposits, _ := m.Int64Counter("funds.service.deposits", metric.WithDescription("Number of deposits"))
	withdrawals, _ := m.Int64Counter("funds.service.withdrawals", metric.WithDescription("Number of withdrawals"))
	feeMints, _ := m.Int64Counter("funds.service.fee_mints", metric.WithDescription("Number of non-zero manager fee mints"))
	executions, _ := m.Int64Counter("funds.service.executions", metric.WithDescription("Number of guarded external calls"))
	failures, _ := m.Int64Counter("funds.service.failures", metric.WithDescription("Number of failed use cases by reason"))
	return serviceMetrics{
		deposits:    deposits,
		withdrawals: withdrawals,
		feeMints:    feeMints,
		executions:  executions,
		failures:    failures,
	}
}

func (m serviceMetrics) recordDeposit(ctx context.Context, asset address.Address) {
	addCounter(ctx, m.deposits, 1, attribute.String("asset", asset.String()))
}

func (m serviceMetrics) recordWithdrawal(ctx context.Context, assets int) {
	addCounter(ctx, m.withdrawals, 1, attribute.Int("assets", assets))
}

func (m serviceMetrics) recordFeeMint(ctx context.Context) {
	addCounter(ctx, m.feeMints, 1)
}

func (m serviceMetrics) recordExecution(ctx context.Context, guard, op string) {
	addCounter(ctx, m.executions, 1, attribute.String("guard", guard), attribute.String("op", op))
}

func (m serviceMetrics) recordFailure(ctx context.Context, op string, err error) {
	code := reason.Code(err)
	if code == "" {
		code = "internal"
	}
	addCounter(ctx, m.failures, 1, attribute.String("op", op), attribute.String("reason", code))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
