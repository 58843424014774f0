package temporal

import (
	"time"

	"go.temporal.io/sdk/workflow"
)

// SprintCeremonyWorkflow runs for the duration of one sprint: it opens
// the sprint span via StartSprintActivity, then blocks until it
// receives an EndSprintSignal and closes the span via
// EndSprintActivity. No timeout applies to the wait; without the
// signal the workflow does not end the sprint.
func SprintCeremonyWorkflow(ctx workflow.Context, params StartSprintParams) error {
	ao := workflow.ActivityOptions{StartToCloseTimeout: 30 * time.Second}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var acts *Activities
	if err := workflow.ExecuteActivity(ctx, acts.StartSprintActivity, params.SprintID).Get(ctx, nil); err != nil {
		return err
	}

	signalCh := workflow.GetSignalChannel(ctx, EndSprintSignalName)
	var signal EndSprintSignal
	signalCh.Receive(ctx, &signal)

	return workflow.ExecuteActivity(ctx, acts.EndSprintActivity, signal.Resolution).Get(ctx, nil)
}
