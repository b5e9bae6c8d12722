package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/fund-ledger/internal/domains/funds/application/types"
	"github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	govports "github.com/Apurer/fund-ledger/internal/domains/governance/ports"
	feeworkflows "github.com/Apurer/fund-ledger/internal/platform/temporal/workflows/funds"
	"github.com/Apurer/fund-ledger/internal/shared/address"
)

var (
	_ ports.FeeWorkflows = (*TemporalFeeWorkflows)(nil)
	_ ports.FeeWorkflows = (*InlineFeeWorkflows)(nil)
)

// TemporalFeeWorkflows announces fee increases on the ledger and hands the
// timelock to a Temporal workflow that commits once the delay elapsed.
type TemporalFeeWorkflows struct {
	client    client.Client
	service   ports.Service
	system    govports.SystemState
	taskQueue string
}

// NewTemporalFeeWorkflows wires a Temporal client into the orchestrator.
func NewTemporalFeeWorkflows(c client.Client, service ports.Service, system govports.SystemState) *TemporalFeeWorkflows {
	return &TemporalFeeWorkflows{client: c, service: service, system: system, taskQueue: feeworkflows.FeesTaskQueue}
}

// ScheduleFeeIncrease announces the proposal and starts the workflow that commits it.
// A newer announcement for the same fund replaces the running workflow.
func (o *TemporalFeeWorkflows) ScheduleFeeIncrease(ctx context.Context, input types.FeesInput) (*ports.FeeIncreaseTicket, error) {
	if o == nil || o.client == nil || o.service == nil {
		return nil, errors.New("temporal fee workflows not configured")
	}
	ticket, announcedAt, err := announce(ctx, o.service, o.system, input)
	if err != nil {
		return nil, err
	}
	ticket.WorkflowID = feeIncreaseWorkflowID(input.Fund)
	options := client.StartWorkflowOptions{
		ID:                       ticket.WorkflowID,
		TaskQueue:                o.taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
	}
	_, err = o.client.ExecuteWorkflow(ctx, options, feeworkflows.FeeIncreaseWorkflow, feeworkflows.FeeIncreaseWorkflowInput{
		Fund:        input.Fund,
		Caller:      input.Caller,
		AnnouncedAt: announcedAt,
		ValidAt:     ticket.ValidAt,
		TraceID:     workflowTraceComponent(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("start fee increase workflow: %w", err)
	}
	return ticket, nil
}

// CancelFeeIncrease signals the running workflow to renounce. Without one, the
// proposal is renounced directly.
func (o *TemporalFeeWorkflows) CancelFeeIncrease(ctx context.Context, input types.FundRef) error {
	if o == nil || o.client == nil || o.service == nil {
		return errors.New("temporal fee workflows not configured")
	}
	err := o.client.SignalWorkflow(ctx, feeIncreaseWorkflowID(input.Fund), "", feeworkflows.RenounceFeeIncreaseSignal, input)
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		_, err = o.service.RenounceFeeIncrease(ctx, input)
	}
	return err
}

// MintManagerFee runs the mint workflow and waits for its receipt.
func (o *TemporalFeeWorkflows) MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal fee workflows not configured")
	}
	traceComponent := workflowTraceComponent(ctx)
	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("manager-fee-%s-%s", fund, traceComponent),
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, feeworkflows.ManagerFeeMintWorkflow, feeworkflows.ManagerFeeMintWorkflowInput{Fund: fund, TraceID: traceComponent})
	if err != nil {
		return nil, err
	}
	var receipt types.FeeMintReceipt
	if err := run.Get(ctx, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// InlineFeeWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
// Announced increases are committed by an explicit CommitFeeIncrease call.
type InlineFeeWorkflows struct {
	service ports.Service
	system  govports.SystemState
}

// NewInlineFeeWorkflows wraps the ledger service for synchronous execution.
func NewInlineFeeWorkflows(service ports.Service, system govports.SystemState) *InlineFeeWorkflows {
	return &InlineFeeWorkflows{service: service, system: system}
}

func (o *InlineFeeWorkflows) ScheduleFeeIncrease(ctx context.Context, input types.FeesInput) (*ports.FeeIncreaseTicket, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline fee workflows not configured")
	}
	ticket, _, err := announce(ctx, o.service, o.system, input)
	return ticket, err
}

func (o *InlineFeeWorkflows) CancelFeeIncrease(ctx context.Context, input types.FundRef) error {
	if o == nil || o.service == nil {
		return errors.New("inline fee workflows not configured")
	}
	_, err := o.service.RenounceFeeIncrease(ctx, input)
	return err
}

func (o *InlineFeeWorkflows) MintManagerFee(ctx context.Context, fund address.Address) (*types.FeeMintReceipt, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline fee workflows not configured")
	}
	return o.service.MintManagerFee(ctx, fund)
}

func announce(ctx context.Context, service ports.Service, system govports.SystemState, input types.FeesInput) (*ports.FeeIncreaseTicket, time.Time, error) {
	projection, err := service.AnnounceFeeIncrease(ctx, input)
	if err != nil {
		return nil, time.Time{}, err
	}
	proposal := projection.Entity.Fees.Proposal
	if proposal == nil {
		return nil, time.Time{}, errors.New("announced fee increase has no pending proposal")
	}
	ticket := &ports.FeeIncreaseTicket{Fund: input.Fund, ValidAt: proposal.AnnouncedAt}
	if system != nil {
		ticket.ValidAt = proposal.AnnouncedAt.Add(system.FeeLimits().IncreaseDelay)
	}
	return ticket, proposal.AnnouncedAt, nil
}

func feeIncreaseWorkflowID(fund address.Address) string {
	return fmt.Sprintf("fee-increase-%s", fund)
}

func workflowTraceComponent(ctx context.Context) string {
	traceComponent := workflowTraceID(ctx)
	if traceComponent != "" {
		return traceComponent
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	traceID := spanCtx.TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
