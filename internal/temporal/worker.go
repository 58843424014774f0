package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/contextcore/core/pkg/taskspan"
)

// StartWorker connects to a local Temporal frontend and runs the sprint
// ceremony worker until ctx-independent Stop is called via the returned
// worker.Worker's Stop method (kept thin, no retry/backoff policy of
// its own — the teacher's StartWorker is the same one-shot Dial+Run).
func StartWorker(hostPort, taskQueue string, controller *taskspan.SprintController) (worker.Worker, client.Client, error) {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	c, err := client.Dial(client.Options{HostPort: hostPort})
	if err != nil {
		return nil, nil, fmt.Errorf("temporal: dialing %s: %w", hostPort, err)
	}

	w := worker.New(c, taskQueue, worker.Options{})
	acts := &Activities{Controller: controller}

	w.RegisterWorkflow(SprintCeremonyWorkflow)
	w.RegisterActivity(acts.StartSprintActivity)
	w.RegisterActivity(acts.EndSprintActivity)

	if err := w.Start(); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("temporal: starting worker: %w", err)
	}
	return w, c, nil
}
