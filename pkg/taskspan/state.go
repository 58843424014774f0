package taskspan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/contextcore/core/pkg/value"
)

// CurrentSchemaVersion is the schema version written by this build.
// Migration history:
//   - v1 (implicit): original schema, no version field.
//   - v2: added schema_version, project_id (extracted from attributes),
//     created_at (defaulted from start_time).
const CurrentSchemaVersion = 2

// persistedEvent is the on-disk shape of an Event.
type persistedEvent struct {
	Timestamp  time.Time      `json:"timestamp"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

// PersistedState is the schema-v2 on-disk record for a single task
// span, as enumerated in spec.md §3 "Persisted span state".
type PersistedState struct {
	SchemaVersion     int              `json:"schema_version"`
	TaskID            string           `json:"task_id"`
	SpanName          string           `json:"span_name"`
	TraceID           string           `json:"trace_id"`
	SpanID            string           `json:"span_id"`
	ParentSpanID      string           `json:"parent_span_id,omitempty"`
	ProjectID         string           `json:"project_id"`
	CreatedAt         time.Time        `json:"created_at"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           *time.Time       `json:"end_time,omitempty"`
	Attributes        map[string]any   `json:"attributes"`
	Events            []persistedEvent `json:"events"`
	Status            string           `json:"status"`
	StatusDescription string           `json:"status_description,omitempty"`
}

// attrKey names used inside the attributes map to round-trip span
// fields that are not first-class PersistedState columns.
const (
	attrKind            = "task.kind"
	attrPriority        = "task.priority"
	attrAssignee        = "task.assignee"
	attrStoryPoints     = "task.story_points"
	attrLabels          = "task.labels"
	attrSprintID        = "task.sprint_id"
	attrParentTaskID    = "task.parent_id"
	attrDependsOn       = "task.depends_on"
	attrPercentComplete = "task.percent_complete"
	attrManualOverride  = "task.percent_complete.manual_override"
	attrState           = "task.state"
	attrFirstInProgress = "task.first_in_progress_at"
	attrBlockedIntervals = "task.blocked_intervals"
)

// toPersisted serializes a Span into the current schema version.
func toPersisted(s *Span) PersistedState {
	attrs := map[string]any{
		attrKind:            string(s.Kind),
		attrPriority:        string(s.Priority),
		attrPercentComplete: s.PercentComplete,
		attrManualOverride:  s.ManualOverride,
		attrState:           string(s.State),
	}
	if s.HasAssignee {
		attrs[attrAssignee] = s.Assignee
	}
	if s.HasStoryPoints {
		attrs[attrStoryPoints] = s.StoryPoints
	}
	if len(s.Labels) > 0 {
		labels := make([]string, 0, len(s.Labels))
		for l := range s.Labels {
			labels = append(labels, l)
		}
		attrs[attrLabels] = labels
	}
	if s.HasSprint {
		attrs[attrSprintID] = s.SprintID
	}
	if s.HasParentTask {
		attrs[attrParentTaskID] = s.ParentTaskID
	}
	if len(s.DependsOn) > 0 {
		attrs[attrDependsOn] = s.DependsOn
	}
	if s.HasFirstInProgress {
		attrs[attrFirstInProgress] = s.FirstInProgressAt.Format(time.RFC3339Nano)
	}
	if len(s.BlockedIntervals) > 0 {
		ivs := make([]map[string]any, 0, len(s.BlockedIntervals))
		for _, iv := range s.BlockedIntervals {
			m := map[string]any{"start": iv.Start.Format(time.RFC3339Nano)}
			if !iv.End.IsZero() {
				m["end"] = iv.End.Format(time.RFC3339Nano)
			}
			ivs = append(ivs, m)
		}
		attrs[attrBlockedIntervals] = ivs
	}
	attrs["project.id"] = s.ProjectID

	events := make([]persistedEvent, len(s.Events))
	for i, e := range s.Events {
		events[i] = persistedEvent{
			Timestamp:  e.Timestamp,
			Name:       e.Name,
			Attributes: e.Attributes.RawMap(),
		}
	}

	ps := PersistedState{
		SchemaVersion:     CurrentSchemaVersion,
		TaskID:            s.TaskID,
		SpanName:          s.Title,
		TraceID:           s.TraceID,
		SpanID:            s.SpanID,
		ParentSpanID:      s.ParentSpanID,
		ProjectID:         s.ProjectID,
		CreatedAt:         s.CreatedAt,
		StartTime:         s.CreatedAt,
		Attributes:        attrs,
		Events:            events,
		Status:            string(s.Status),
		StatusDescription: s.StatusDescription,
	}
	if s.HasCompletedAt {
		end := s.CompletedAt
		ps.EndTime = &end
	}
	return ps
}

// fromPersisted reconstructs a Span from a (possibly migrated)
// PersistedState.
func fromPersisted(ps PersistedState) (*Span, error) {
	s := &Span{
		ProjectID:         ps.ProjectID,
		TaskID:            ps.TaskID,
		TraceID:           ps.TraceID,
		SpanID:            ps.SpanID,
		ParentSpanID:      ps.ParentSpanID,
		Title:             ps.SpanName,
		CreatedAt:         ps.CreatedAt,
		Status:            StatusCode(ps.Status),
		StatusDescription: ps.StatusDescription,
		Labels:            map[string]struct{}{},
	}
	if ps.EndTime != nil {
		s.CompletedAt = *ps.EndTime
		s.HasCompletedAt = true
	}

	if v, ok := ps.Attributes[attrKind]; ok {
		if str, ok := v.(string); ok {
			s.Kind = Kind(str)
		}
	}
	if v, ok := ps.Attributes[attrPriority]; ok {
		if str, ok := v.(string); ok {
			s.Priority = Priority(str)
		}
	}
	if v, ok := ps.Attributes[attrState]; ok {
		if str, ok := v.(string); ok {
			s.State = LifecycleState(str)
		}
	}
	if v, ok := ps.Attributes[attrAssignee]; ok {
		if str, ok := v.(string); ok {
			s.Assignee = str
			s.HasAssignee = true
		}
	}
	if v, ok := ps.Attributes[attrStoryPoints]; ok {
		if n, ok := asInt(v); ok {
			s.StoryPoints = n
			s.HasStoryPoints = true
		}
	}
	if v, ok := ps.Attributes[attrLabels]; ok {
		for _, raw := range asSlice(v) {
			if str, ok := raw.(string); ok {
				s.Labels[str] = struct{}{}
			}
		}
	}
	if v, ok := ps.Attributes[attrSprintID]; ok {
		if str, ok := v.(string); ok {
			s.SprintID = str
			s.HasSprint = true
		}
	}
	if v, ok := ps.Attributes[attrParentTaskID]; ok {
		if str, ok := v.(string); ok {
			s.ParentTaskID = str
			s.HasParentTask = true
		}
	}
	if v, ok := ps.Attributes[attrDependsOn]; ok {
		for _, raw := range asSlice(v) {
			if str, ok := raw.(string); ok {
				s.DependsOn = append(s.DependsOn, str)
			}
		}
	}
	if v, ok := ps.Attributes[attrPercentComplete]; ok {
		if n, ok := asInt(v); ok {
			s.PercentComplete = n
		}
	}
	if v, ok := ps.Attributes[attrManualOverride]; ok {
		if b, ok := v.(bool); ok {
			s.ManualOverride = b
		}
	}
	if v, ok := ps.Attributes[attrFirstInProgress]; ok {
		if str, ok := v.(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
				s.FirstInProgressAt = t
				s.HasFirstInProgress = true
			}
		}
	}
	if v, ok := ps.Attributes[attrBlockedIntervals]; ok {
		for _, raw := range asSlice(v) {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			var iv BlockedInterval
			if str, ok := m["start"].(string); ok {
				iv.Start, _ = time.Parse(time.RFC3339Nano, str)
			}
			if str, ok := m["end"].(string); ok {
				iv.End, _ = time.Parse(time.RFC3339Nano, str)
			}
			s.BlockedIntervals = append(s.BlockedIntervals, iv)
		}
	}

	s.Events = make([]Event, len(ps.Events))
	for i, pe := range ps.Events {
		attrMap, err := value.MapFromRaw(pe.Attributes)
		if err != nil {
			return nil, fmt.Errorf("taskspan: event %d attributes: %w", i, err)
		}
		s.Events[i] = Event{Timestamp: pe.Timestamp, Name: pe.Name, Attributes: attrMap}
	}

	return s, nil
}

// migrate brings a raw decoded record forward to CurrentSchemaVersion
// by additive rules, mirroring the v1→v2 migration in
// original_source/src/contextcore/state.py: add schema_version,
// extract project_id from attributes, default created_at from
// start_time.
func migrate(raw map[string]any) (map[string]any, bool) {
	version := 1
	if v, ok := raw["schema_version"]; ok {
		if n, ok := asInt(v); ok {
			version = n
		}
	}
	migrated := false
	if version < 2 {
		attrs, _ := raw["attributes"].(map[string]any)
		if attrs == nil {
			attrs = map[string]any{}
		}
		if _, has := raw["project_id"]; !has {
			if pid, ok := attrs["project.id"]; ok {
				raw["project_id"] = pid
			} else if pid, ok := attrs["project.name"]; ok {
				raw["project_id"] = pid
			} else {
				raw["project_id"] = nil
			}
		}
		if _, has := raw["created_at"]; !has {
			raw["created_at"] = raw["start_time"]
		}
		migrated = true
	}
	raw["schema_version"] = CurrentSchemaVersion
	return raw, migrated
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

// decodePersisted decodes raw JSON bytes into a PersistedState,
// migrating forward if the on-disk schema_version is stale. Returns
// whether migration occurred so the caller can decide to rewrite.
func decodePersisted(data []byte) (PersistedState, bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return PersistedState{}, false, fmt.Errorf("taskspan: corrupt state record: %w", err)
	}
	raw, migrated := migrate(raw)

	// Re-marshal the migrated generic map into PersistedState via JSON
	// so field typing/validation falls out of the standard decoder.
	buf, err := json.Marshal(raw)
	if err != nil {
		return PersistedState{}, false, fmt.Errorf("taskspan: re-encoding migrated record: %w", err)
	}
	var ps PersistedState
	if err := json.Unmarshal(buf, &ps); err != nil {
		return PersistedState{}, false, fmt.Errorf("taskspan: decoding migrated record: %w", err)
	}
	return ps, migrated, nil
}
