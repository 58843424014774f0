// Package temporal wraps pkg/taskspan's SprintController in Temporal
// workflow/activity definitions so sprint cadence can be driven by a
// durable, long-running workflow instead of an in-process ticker.
// Grounded on the teacher's internal/temporal package: a thin
// Workflow-as-orchestrator that calls back into domain operations
// through Activities, registered on a worker.New(taskQueue) the same
// way. Everything dispatch/groom/tiering-specific from the teacher's
// version is gone — what survives is the register-and-signal shape.
package temporal

// StartSprintParams is the Temporal workflow input for
// SprintCeremonyWorkflow.
type StartSprintParams struct {
	SprintID string
}

// EndSprintSignal is sent to a running SprintCeremonyWorkflow to close
// out its sprint, e.g. from a cron-driven client or an operator action.
type EndSprintSignal struct {
	Resolution string
}

// EndSprintSignalName is the Temporal signal channel name
// SprintCeremonyWorkflow listens on.
const EndSprintSignalName = "end-sprint"

// TaskQueue is the default Temporal task queue this package's worker
// registers against.
const TaskQueue = "contextcore-sprint-ceremony"
