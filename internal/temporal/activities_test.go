package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/contextcore/core/pkg/taskspan"
)

func newTestController(t *testing.T) *taskspan.SprintController {
	t.Helper()
	mgr, err := taskspan.NewManager("proj-1", t.TempDir(), "", "test", nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return taskspan.NewSprintController(mgr, taskspan.Cadence{Length: 7 * 24 * time.Hour}, nil)
}

func TestActivities_StartAndEndSprint(t *testing.T) {
	acts := &Activities{Controller: newTestController(t)}

	if err := acts.StartSprintActivity(context.Background(), "sprint-1"); err != nil {
		t.Fatal(err)
	}
	if got := acts.Controller.ActiveSprint(); got != "sprint-1" {
		t.Fatalf("expected active sprint sprint-1, got %q", got)
	}

	if err := acts.EndSprintActivity(context.Background(), "completed"); err != nil {
		t.Fatal(err)
	}
	if got := acts.Controller.ActiveSprint(); got != "" {
		t.Fatalf("expected no active sprint after end, got %q", got)
	}
}

func TestActivities_RequireBoundController(t *testing.T) {
	acts := &Activities{}
	if err := acts.StartSprintActivity(context.Background(), "sprint-1"); err == nil {
		t.Fatal("expected an error with no bound controller")
	}
}
