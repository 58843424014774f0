package temporal

import (
	"context"
	"fmt"

	"github.com/contextcore/core/pkg/taskspan"
)

// Activities binds Temporal activity methods to a live
// SprintController, mirroring the teacher's Activities{Store, Tiers,
// DAG} struct-of-dependencies pattern.
type Activities struct {
	Controller *taskspan.SprintController
}

// StartSprintActivity begins sprintID via the bound SprintController.
func (a *Activities) StartSprintActivity(ctx context.Context, sprintID string) error {
	if a.Controller == nil {
		return fmt.Errorf("temporal: no sprint controller bound to activities")
	}
	return a.Controller.StartSprint(sprintID)
}

// EndSprintActivity closes the currently active sprint with resolution.
func (a *Activities) EndSprintActivity(ctx context.Context, resolution string) error {
	if a.Controller == nil {
		return fmt.Errorf("temporal: no sprint controller bound to activities")
	}
	return a.Controller.EndSprint(resolution)
}
