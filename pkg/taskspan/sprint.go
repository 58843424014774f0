package taskspan

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/contextcore/core/pkg/value"
)

// Cadence is the shared sprint cadence a project's sprints follow:
// sprint length and timezone. It is declared in this package so
// taskspan has no dependency on the deployment config package.
type Cadence struct {
	Length   time.Duration
	Timezone *time.Location
}

// SprintController emits sprint.started/sprint.ended lifecycle events
// against a normalized cadence and tags new task spans with the
// active sprint id, grounded on internal/store/sprint.go's
// SprintBoundary bookkeeping and internal/scheduler/ceremony.go's
// cadence-driven scheduling.
type SprintController struct {
	manager *Manager
	cadence Cadence
	logger  *slog.Logger

	active     string
	activeFrom time.Time
	number     int
}

// NewSprintController constructs a controller bound to manager.
func NewSprintController(manager *Manager, cadence Cadence, logger *slog.Logger) *SprintController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SprintController{manager: manager, cadence: cadence, logger: logger}
}

// ActiveSprint returns the currently active sprint id, or "" if none
// has been started.
func (c *SprintController) ActiveSprint() string { return c.active }

// StartSprint begins a new sprint, closing out any still-open one
// first (a sprint boundary never overlaps another, per spec.md §3's
// "terminal" semantics applied to the sprint kind).
func (c *SprintController) StartSprint(sprintID string) error {
	if c.active != "" {
		if err := c.EndSprint("superseded by new sprint"); err != nil {
			return err
		}
	}
	c.number++
	c.active = sprintID
	c.activeFrom = time.Now().UTC()

	span, err := c.manager.StartTask(sprintID, fmt.Sprintf("Sprint %d", c.number), KindSprint, PriorityMedium)
	if err != nil {
		return fmt.Errorf("sprint: starting sprint span: %w", err)
	}
	if err := c.manager.UpdateStatus(sprintID, StateInProgress); err != nil {
		return err
	}
	span.appendEvent(EventSprintStarted, value.Map{"sprint_id": value.String(sprintID)})
	c.manager.store.Save(span)
	c.manager.emitFromSpan(span, EventSprintStarted, nil)
	return nil
}

// EndSprint closes the active sprint span. Any task still tagged with
// this sprint keeps its attribute; it is not implicitly completed.
func (c *SprintController) EndSprint(resolution string) error {
	if c.active == "" {
		return nil
	}
	sprintID := c.active
	span, ok := c.manager.Get(sprintID)
	if ok {
		span.appendEvent(EventSprintEnded, value.Map{"resolution": value.String(resolution)})
		c.manager.store.Save(span)
		c.manager.emitFromSpan(span, EventSprintEnded, map[string]any{"resolution": resolution})
	}
	if err := c.manager.CompleteTask(sprintID); err != nil && err != ErrUnknownTask {
		c.logger.Warn("sprint: completing sprint span failed", "sprint_id", sprintID, "error", err)
	}
	c.active = ""
	return nil
}

// WithActiveSprint is an Option that tags a new task with the
// controller's currently active sprint, if any.
func (c *SprintController) WithActiveSprint() Option {
	sprintID := c.active
	return func(s *Span) {
		if sprintID != "" {
			s.SprintID = sprintID
			s.HasSprint = true
		}
	}
}
