package taskspan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contextcore/core/pkg/value"
)

var (
	// ErrUnknownTask is returned by mutation operations for a task_id
	// that does not exist, after logging a warning; nothing is changed.
	// Query operations (Get, GetTaskLink) report an unknown id with a
	// false boolean instead.
	ErrUnknownTask = errors.New("taskspan: unknown task_id")
	// ErrTerminal is returned when a mutation is attempted against a
	// span already in a terminal state.
	ErrTerminal = errors.New("taskspan: span is in a terminal state")
)

// Option configures optional attributes passed to StartTask.
type Option func(*Span)

func WithAssignee(assignee string) Option {
	return func(s *Span) { s.Assignee = assignee; s.HasAssignee = true }
}

func WithStoryPoints(points int) Option {
	return func(s *Span) { s.StoryPoints = points; s.HasStoryPoints = true }
}

func WithLabels(labels ...string) Option {
	return func(s *Span) {
		for _, l := range labels {
			s.Labels[l] = struct{}{}
		}
	}
}

func WithSprint(sprintID string) Option {
	return func(s *Span) { s.SprintID = sprintID; s.HasSprint = true }
}

func WithParent(parentTaskID string) Option {
	return func(s *Span) { s.ParentTaskID = parentTaskID; s.HasParentTask = true }
}

func WithDependsOn(taskIDs ...string) Option {
	return func(s *Span) { s.DependsOn = append(s.DependsOn, taskIDs...) }
}

// Manager creates, mutates, persists, and completes task spans for a
// single project. Mutations on a single task are serialized by a
// per-task lock; spans for different tasks mutate independently, per
// spec.md §5 "Scheduling model".
type Manager struct {
	projectID string
	service   string
	logger    *slog.Logger
	sink      EventSink
	store     *store
	tracer    SpanTracer

	mu       sync.Mutex // guards spans + children, not held across Save()
	spans    map[string]*Span
	children map[string][]string // parent task_id -> child task_ids, fixed at creation
	locks    map[string]*sync.Mutex
	mirrors  map[string]any // task_id -> opaque SpanTracer handle
}

// Degraded reports whether the backing store fell back to a temp
// directory because the configured state directory was not writable.
func (m *Manager) Degraded() bool { return m.store.Degraded() }

// NewManager constructs a Manager for project, persisting state under
// <primaryBaseDir>/<project>/ (falling back transparently to
// <fallbackBaseDir>/<project>/ if the primary is not writable), and
// loads any active spans already on disk.
func NewManager(projectID, primaryBaseDir, fallbackBaseDir, service string, logger *slog.Logger, sink EventSink, tracer SpanTracer) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := newStore(primaryBaseDir, fallbackBaseDir, projectID, logger)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NewSlogSink(logger, service)
	}

	m := &Manager{
		projectID: projectID,
		service:   service,
		logger:    logger,
		sink:      sink,
		store:     st,
		tracer:    tracer,
		spans:     map[string]*Span{},
		children:  map[string][]string{},
		locks:     map[string]*sync.Mutex{},
	}

	loaded, err := st.LoadActive()
	if err != nil {
		return nil, err
	}
	for id, span := range loaded {
		m.spans[id] = span
		if span.HasParentTask {
			m.children[span.ParentTaskID] = append(m.children[span.ParentTaskID], id)
		}
	}
	return m, nil
}

func (m *Manager) lockFor(taskID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[taskID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[taskID] = l
	}
	return l
}

// Get returns the current span for taskID, or (nil, false) if unknown.
func (m *Manager) Get(taskID string) (*Span, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.spans[taskID]
	return s, ok
}

// GetTaskLink returns an opaque cross-trace correlation reference for
// taskID another span may attach, or false if unknown.
func (m *Manager) GetTaskLink(taskID string) (Link, bool) {
	s, ok := m.Get(taskID)
	if !ok {
		return Link{}, false
	}
	return Link{ProjectID: s.ProjectID, TaskID: s.TaskID, TraceID: s.TraceID, SpanID: s.SpanID}, true
}

// StartTask creates a new span for taskID. If taskID is already
// active, StartTask is a no-op that returns the existing span (spec.md
// §4.A: "fails silently returning the existing span").
func (m *Manager) StartTask(taskID, title string, kind Kind, priority Priority, opts ...Option) (*Span, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("taskspan: invalid kind %q", kind)
	}
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("taskspan: invalid priority %q", priority)
	}

	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	if existing, ok := m.Get(taskID); ok {
		return existing, nil
	}

	traceID, spanID := newIDs()
	now := time.Now().UTC()
	s := &Span{
		ProjectID:       m.projectID,
		TaskID:          taskID,
		Kind:            kind,
		TraceID:         traceID,
		SpanID:          spanID,
		Title:           title,
		Priority:        priority,
		Labels:          map[string]struct{}{},
		State:           StateTodo,
		Status:          StatusUnset,
		PercentComplete: 0,
		CreatedAt:       now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.HasParentTask {
		if parent, ok := m.Get(s.ParentTaskID); ok {
			s.ParentSpanID = parent.SpanID
		}
	}

	s.appendEvent(EventCreated, value.Map{
		"kind":     value.String(string(kind)),
		"priority": value.String(string(priority)),
	})

	m.mu.Lock()
	m.spans[taskID] = s
	if s.HasParentTask {
		m.children[s.ParentTaskID] = append(m.children[s.ParentTaskID], taskID)
	}
	m.mu.Unlock()

	m.store.Save(s)
	m.emitFromSpan(s, EventCreated, nil)
	m.mirrorStart(s)
	return s, nil
}

// UpdateStatus appends a task.status_changed(from, to) event and
// updates the span's lifecycle state and status code. Entering
// "blocked" sets Status to ERROR; leaving it sets Status back to OK.
func (m *Manager) UpdateStatus(taskID string, next LifecycleState) error {
	if !next.Valid() {
		return fmt.Errorf("taskspan: invalid state %q", next)
	}
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	s, ok := m.Get(taskID)
	if !ok {
		m.logger.Warn("taskspan: update_status on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State.Terminal() {
		m.logger.Warn("taskspan: mutation on terminal span ignored", "task_id", taskID, "state", s.State)
		return ErrTerminal
	}

	from := s.State
	s.State = next
	if next == StateInProgress && !s.HasFirstInProgress {
		s.FirstInProgressAt = time.Now().UTC()
		s.HasFirstInProgress = true
	}
	switch {
	case next == StateBlocked:
		s.Status = StatusError
	case from == StateBlocked && next != StateBlocked:
		s.Status = StatusOK
	}

	s.appendEvent(EventStatusChanged, value.Map{
		"from": value.String(string(from)),
		"to":   value.String(string(next)),
	})

	m.store.Save(s)
	m.emitFromSpan(s, EventStatusChanged, map[string]any{"from": string(from), "to": string(next)})
	return nil
}

// BlockTask records the start of a blocking interval and sets the
// span's state to blocked (Status -> ERROR).
func (m *Manager) BlockTask(taskID, reason string, blockedBy []string) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	s, ok := m.Get(taskID)
	if !ok {
		m.logger.Warn("taskspan: block_task on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State.Terminal() {
		return ErrTerminal
	}

	from := s.State
	s.State = StateBlocked
	s.Status = StatusError
	s.BlockedIntervals = append(s.BlockedIntervals, BlockedInterval{Start: time.Now().UTC()})

	attrs := value.Map{"reason": value.String(reason)}
	if len(blockedBy) > 0 {
		vs := make([]value.Value, len(blockedBy))
		for i, b := range blockedBy {
			vs[i] = value.String(b)
		}
		attrs["blocked_by"] = value.List(vs...)
	}
	s.appendEvent(EventBlocked, attrs)
	if from != StateBlocked {
		s.appendEvent(EventStatusChanged, value.Map{"from": value.String(string(from)), "to": value.String(string(StateBlocked))})
	}

	m.store.Save(s)
	m.emitFromSpan(s, EventBlocked, map[string]any{"reason": reason})
	return nil
}

// UnblockTask closes the most recent open blocking interval and
// returns the span to in_progress (Status -> OK).
func (m *Manager) UnblockTask(taskID, resolution string) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	s, ok := m.Get(taskID)
	if !ok {
		m.logger.Warn("taskspan: unblock_task on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State != StateBlocked {
		m.logger.Warn("taskspan: unblock_task on non-blocked span ignored", "task_id", taskID, "state", s.State)
		return nil
	}

	now := time.Now().UTC()
	for i := range s.BlockedIntervals {
		if s.BlockedIntervals[i].End.IsZero() {
			s.BlockedIntervals[i].End = now
			break
		}
	}

	s.State = StateInProgress
	s.Status = StatusOK
	if !s.HasFirstInProgress {
		s.FirstInProgressAt = now
		s.HasFirstInProgress = true
	}

	s.appendEvent(EventUnblocked, value.Map{"resolution": value.String(resolution)})
	s.appendEvent(EventStatusChanged, value.Map{"from": value.String(string(StateBlocked)), "to": value.String(string(StateInProgress))})

	m.store.Save(s)
	m.emitFromSpan(s, EventUnblocked, map[string]any{"resolution": resolution})
	return nil
}

// SetProgress clamps percent to [0, 100], emits task.progress_updated,
// and — for a manual source — marks the override so an automatic
// subtask-driven recompute may still override it later per the
// invariant in spec.md §3.
func (m *Manager) SetProgress(taskID string, percent int, source ProgressSource) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	lock := m.lockFor(taskID)
	lock.Lock()
	s, ok := m.Get(taskID)
	if !ok {
		lock.Unlock()
		m.logger.Warn("taskspan: set_progress on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State.Terminal() {
		lock.Unlock()
		return ErrTerminal
	}

	s.PercentComplete = percent
	s.ManualOverride = source == ProgressManual
	s.appendEvent(EventProgressUpdated, value.Map{
		"percent": value.Int(int64(percent)),
		"source":  value.String(string(source)),
	})
	m.store.Save(s)
	m.emitFromSpan(s, EventProgressUpdated, map[string]any{"percent": percent, "source": string(source)})
	parentID := s.ParentTaskID
	hasParent := s.HasParentTask
	lock.Unlock()

	if hasParent {
		m.propagateToParent(parentID)
	}
	return nil
}

// propagateToParent recomputes a parent's percent-complete as the
// average of its children's percent-complete and recurses upward.
// Cycles are impossible because a task's parent is fixed at creation.
func (m *Manager) propagateToParent(parentID string) {
	m.mu.Lock()
	childIDs := append([]string(nil), m.children[parentID]...)
	m.mu.Unlock()
	if len(childIDs) == 0 {
		return
	}

	total := 0
	count := 0
	for _, cid := range childIDs {
		if c, ok := m.Get(cid); ok {
			total += c.PercentComplete
			count++
		}
	}
	if count == 0 {
		return
	}
	avg := total / count
	if rem := total % count; rem*2 >= count {
		avg++ // round to nearest rather than always truncating down
	}

	if _, ok := m.Get(parentID); !ok {
		return
	}
	_ = m.SetProgress(parentID, avg, ProgressSubtask)
}

// CompleteTask sets the span to done (percent=100, Status OK),
// archives its persisted record, and recursively propagates progress
// to its parent.
func (m *Manager) CompleteTask(taskID string) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	s, ok := m.Get(taskID)
	if !ok {
		lock.Unlock()
		m.logger.Warn("taskspan: complete_task on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State.Terminal() {
		lock.Unlock()
		return ErrTerminal
	}

	from := s.State
	now := time.Now().UTC()
	s.State = StateDone
	s.Status = StatusOK
	s.PercentComplete = 100
	s.ManualOverride = false
	s.CompletedAt = now
	s.HasCompletedAt = true

	if from != StateDone {
		s.appendEvent(EventStatusChanged, value.Map{"from": value.String(string(from)), "to": value.String(string(StateDone))})
	}
	s.appendEvent(EventCompleted, nil)

	parentID := s.ParentTaskID
	hasParent := s.HasParentTask
	lock.Unlock()

	m.store.Archive(s)
	m.emitFromSpan(s, EventCompleted, nil)
	m.mirrorEnd(s)

	if hasParent {
		if parent, ok := m.Get(parentID); ok {
			plock := m.lockFor(parentID)
			plock.Lock()
			parent.appendEvent(EventSubtaskComplete, value.Map{"task_id": value.String(taskID)})
			m.store.Save(parent)
			plock.Unlock()
		}
		m.propagateToParent(parentID)
	}
	return nil
}

// CancelTask sets the span to cancelled, archives it, and propagates
// progress to its parent the same way CompleteTask does.
func (m *Manager) CancelTask(taskID, reason string) error {
	lock := m.lockFor(taskID)
	lock.Lock()
	s, ok := m.Get(taskID)
	if !ok {
		lock.Unlock()
		m.logger.Warn("taskspan: cancel_task on unknown task", "task_id", taskID)
		return ErrUnknownTask
	}
	if s.State.Terminal() {
		lock.Unlock()
		return ErrTerminal
	}

	from := s.State
	now := time.Now().UTC()
	s.State = StateCancelled
	s.Status = StatusOK
	s.CompletedAt = now
	s.HasCompletedAt = true
	s.StatusDescription = reason

	if from != StateCancelled {
		s.appendEvent(EventStatusChanged, value.Map{"from": value.String(string(from)), "to": value.String(string(StateCancelled))})
	}
	s.appendEvent(EventCancelled, value.Map{"reason": value.String(reason)})

	parentID := s.ParentTaskID
	hasParent := s.HasParentTask
	lock.Unlock()

	m.store.Archive(s)
	m.emitFromSpan(s, EventCancelled, map[string]any{"reason": reason})
	m.mirrorEnd(s)

	if hasParent {
		m.propagateToParent(parentID)
	}
	return nil
}

func (m *Manager) emitFromSpan(s *Span, event string, extra map[string]any) {
	m.sink.Emit(LifecycleEvent{
		Timestamp: time.Now().UTC(),
		Level:     levelFor(event),
		Event:     event,
		Service:   m.service,
		ProjectID: s.ProjectID,
		TaskID:    s.TaskID,
		TaskType:  string(s.Kind),
		TaskTitle: s.Title,
		SprintID:  s.SprintID,
		ActorType: ActorSystem,
		Trigger:   TriggerManual,
		Extra:     extra,
	})
}

// newIDs mints a 128-bit hex trace_id and a 64-bit hex span_id, the
// shapes spec.md §3 requires of the persisted span state (mirroring
// OpenTelemetry's own trace/span id widths).
func newIDs() (traceID, spanID string) {
	t := uuid.New()
	s := uuid.New()
	sb := s[:]
	return hex.EncodeToString(t[:]), hex.EncodeToString(sb[:8])
}
