// Package taskspan implements the task span engine: a persistent task
// tracker that models long-running work as OpenTelemetry-shaped spans,
// survives process restarts via versioned on-disk state, propagates
// progress through parent/child relationships, and emits structured
// lifecycle events to a log sink.
package taskspan

import (
	"fmt"
	"time"

	"github.com/contextcore/core/pkg/value"
)

// Kind is the task's type in the work hierarchy.
type Kind string

const (
	KindEpic    Kind = "epic"
	KindStory   Kind = "story"
	KindTask    Kind = "task"
	KindSubtask Kind = "subtask"
	KindBug     Kind = "bug"
	KindSprint  Kind = "sprint"
)

func (k Kind) Valid() bool {
	switch k {
	case KindEpic, KindStory, KindTask, KindSubtask, KindBug, KindSprint:
		return true
	default:
		return false
	}
}

// LifecycleState is the task's current state machine position.
type LifecycleState string

const (
	StateTodo       LifecycleState = "todo"
	StateInProgress LifecycleState = "in_progress"
	StateBlocked    LifecycleState = "blocked"
	StateDone       LifecycleState = "done"
	StateCancelled  LifecycleState = "cancelled"
)

func (s LifecycleState) Valid() bool {
	switch s {
	case StateTodo, StateInProgress, StateBlocked, StateDone, StateCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state is one from which a span may not
// mutate further except for archival move to the completed store.
func (s LifecycleState) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

// Priority is the task's business priority.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// StatusCode mirrors OpenTelemetry's span status code vocabulary.
type StatusCode string

const (
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
	StatusUnset StatusCode = "UNSET"
)

// ProgressSource records who or what drove a progress update.
type ProgressSource string

const (
	ProgressManual   ProgressSource = "manual"
	ProgressSubtask  ProgressSource = "subtask"
	ProgressEstimate ProgressSource = "estimate"
)

// Canonical lifecycle event names, as enumerated in the spec.
const (
	EventCreated         = "task.created"
	EventStatusChanged   = "task.status_changed"
	EventBlocked         = "task.blocked"
	EventUnblocked       = "task.unblocked"
	EventCompleted       = "task.completed"
	EventCancelled       = "task.cancelled"
	EventProgressUpdated = "task.progress_updated"
	EventSubtaskComplete = "subtask.completed"
	EventSprintStarted   = "sprint.started"
	EventSprintEnded     = "sprint.ended"
)

// Event is an append-only, ordered lifecycle event on a span.
type Event struct {
	Timestamp  time.Time
	Name       string
	Attributes value.Map
}

// BlockedInterval records one blocked→unblocked window for blocked-time
// accounting. Open (not yet unblocked) intervals have a zero End.
type BlockedInterval struct {
	Start time.Time
	End   time.Time
}

// Link is an opaque cross-trace correlation reference another span may
// attach via GetTaskLink.
type Link struct {
	ProjectID string
	TaskID    string
	TraceID   string
	SpanID    string
}

// Span is the in-memory task span model: identity, kind, lifecycle
// state, attributes, ordered events, timing, and status.
type Span struct {
	ProjectID string
	TaskID    string
	Kind      Kind

	TraceID      string
	SpanID       string
	ParentSpanID string

	Title           string
	Priority        Priority
	Assignee        string
	HasAssignee     bool
	StoryPoints     int
	HasStoryPoints  bool
	Labels          map[string]struct{}
	SprintID        string
	HasSprint       bool
	ParentTaskID    string
	HasParentTask   bool
	DependsOn       []string
	PercentComplete int
	ManualOverride  bool

	State             LifecycleState
	Status            StatusCode
	StatusDescription string

	CreatedAt         time.Time
	FirstInProgressAt time.Time
	HasFirstInProgress bool
	CompletedAt       time.Time
	HasCompletedAt    bool

	BlockedIntervals []BlockedInterval

	Events []Event
}

// LeadTime is completion - creation; zero if not yet completed.
func (s *Span) LeadTime() time.Duration {
	if !s.HasCompletedAt {
		return 0
	}
	return s.CompletedAt.Sub(s.CreatedAt)
}

// CycleTime is completion - first in_progress; zero if either is unset.
func (s *Span) CycleTime() time.Duration {
	if !s.HasCompletedAt || !s.HasFirstInProgress {
		return 0
	}
	return s.CompletedAt.Sub(s.FirstInProgressAt)
}

// BlockedTime is the sum of all closed blocking intervals. An interval
// still open (blocked but not yet unblocked) does not contribute.
func (s *Span) BlockedTime() time.Duration {
	var total time.Duration
	for _, iv := range s.BlockedIntervals {
		if !iv.End.IsZero() {
			total += iv.End.Sub(iv.Start)
		}
	}
	return total
}

func (s *Span) appendEvent(name string, attrs value.Map) {
	s.Events = append(s.Events, Event{Timestamp: time.Now().UTC(), Name: name, Attributes: attrs})
}

// ReplayStatus replays the task.status_changed event sequence against
// the initial "todo" state and returns the resulting state. Used by
// the testable-property that the replayed sequence must equal the
// span's current State.
func ReplayStatus(events []Event) (LifecycleState, error) {
	state := StateTodo
	for _, e := range events {
		if e.Name != EventStatusChanged {
			continue
		}
		toVal, ok := e.Attributes["to"]
		if !ok {
			return "", fmt.Errorf("taskspan: status_changed event missing 'to' attribute")
		}
		toStr, ok := toVal.AsString()
		if !ok {
			return "", fmt.Errorf("taskspan: status_changed 'to' attribute is not a string")
		}
		next := LifecycleState(toStr)
		if !next.Valid() {
			return "", fmt.Errorf("taskspan: status_changed 'to' attribute %q is not a valid state", toStr)
		}
		state = next
	}
	return state, nil
}
