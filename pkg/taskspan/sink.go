package taskspan

import (
	"context"
	"log/slog"
	"time"
)

// ActorType describes who or what triggered a lifecycle event, per the
// structured log format in spec.md §6.
type ActorType string

const (
	ActorUser        ActorType = "user"
	ActorSystem      ActorType = "system"
	ActorIntegration ActorType = "integration"
)

// Trigger describes how the mutation was initiated.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerWebhook Trigger = "webhook"
	TriggerSync    Trigger = "sync"
)

// LifecycleEvent is the payload handed to an EventSink for a single
// task lifecycle occurrence.
type LifecycleEvent struct {
	Timestamp   time.Time
	Level       slog.Level
	Event       string
	Service     string
	ProjectID   string
	TaskID      string
	TaskType    string
	TaskTitle   string
	SprintID    string
	Actor       string
	ActorType   ActorType
	Trigger     Trigger
	Extra       map[string]any
}

// EventSink forwards lifecycle events to a log collector. The default
// implementation is line-oriented JSON to stdout via slog, matching
// spec.md §6.
type EventSink interface {
	Emit(e LifecycleEvent)
}

// SlogSink emits lifecycle events as single-line structured JSON
// through an injected *slog.Logger (never a package-level singleton,
// per the Design Notes on ambient loggers).
type SlogSink struct {
	logger  *slog.Logger
	service string
}

// NewSlogSink constructs an EventSink backed by logger, tagging every
// emitted record with service.
func NewSlogSink(logger *slog.Logger, service string) *SlogSink {
	return &SlogSink{logger: logger, service: service}
}

func (s *SlogSink) Emit(e LifecycleEvent) {
	if e.Service == "" {
		e.Service = s.service
	}
	attrs := []any{
		"timestamp", e.Timestamp.Format(time.RFC3339Nano),
		"event", e.Event,
		"service", e.Service,
		"project_id", e.ProjectID,
		"task_id", e.TaskID,
	}
	if e.TaskType != "" {
		attrs = append(attrs, "task_type", e.TaskType)
	}
	if e.TaskTitle != "" {
		attrs = append(attrs, "task_title", e.TaskTitle)
	}
	if e.SprintID != "" {
		attrs = append(attrs, "sprint_id", e.SprintID)
	}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	if e.ActorType != "" {
		attrs = append(attrs, "actor_type", string(e.ActorType))
	}
	if e.Trigger != "" {
		attrs = append(attrs, "trigger", string(e.Trigger))
	}
	for k, v := range e.Extra {
		attrs = append(attrs, k, v)
	}
	s.logger.Log(context.Background(), e.Level, e.Event, attrs...)
}

// levelFor maps an event name to its structured log level, per
// spec.md §7's error taxonomy: created/progress/completed are info,
// blocked is warn, nothing at this layer is error (persistence
// failures are logged separately by the store).
func levelFor(name string) slog.Level {
	switch name {
	case EventBlocked:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
