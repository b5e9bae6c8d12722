package workers

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	fundsports "github.com/Apurer/fund-ledger/internal/domains/funds/ports"
	feeactivities "github.com/Apurer/fund-ledger/internal/platform/temporal/activities/funds"
	feeworkflows "github.com/Apurer/fund-ledger/internal/platform/temporal/workflows/funds"
)

// NewFeeWorker creates a worker on the fee task queue with the fee workflows
// and their activities registered against service.
func NewFeeWorker(c client.Client, service fundsports.Service, options worker.Options) worker.Worker {
	w := worker.New(c, feeworkflows.FeesTaskQueue, options)
	Register(w, service)
	return w
}

// Registry is satisfied by workers and by the workflow test environment.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register adds the fee workflows and activities to r.
func Register(r Registry, service fundsports.Service) {
	acts := feeactivities.NewActivities(service)
	r.RegisterWorkflowWithOptions(feeworkflows.FeeIncreaseWorkflow, workflow.RegisterOptions{Name: feeworkflows.FeeIncreaseWorkflowName})
	r.RegisterWorkflowWithOptions(feeworkflows.ManagerFeeMintWorkflow, workflow.RegisterOptions{Name: feeworkflows.ManagerFeeMintWorkflowName})
	r.RegisterActivityWithOptions(acts.CommitFeeIncrease, activity.RegisterOptions{Name: feeactivities.CommitFeeIncreaseActivityName})
	r.RegisterActivityWithOptions(acts.RenounceFeeIncrease, activity.RegisterOptions{Name: feeactivities.RenounceFeeIncreaseActivityName})
	r.RegisterActivityWithOptions(acts.MintManagerFee, activity.RegisterOptions{Name: feeactivities.MintManagerFeeActivityName})
}
