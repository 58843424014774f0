// Package storage implements the pluggable backend for handoffs,
// agent sessions, insights, and project guidance, grounded on
// original_source/src/contextcore/storage/{base,file}.py. The
// Kubernetes-CRD-backed backend those sources also define is out of
// scope (SPEC_FULL.md's Non-goals exclude K8s CRD serialization); this
// package carries the File and Memory backends only.
package storage

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type HandoffStatus string

const (
	HandoffPending   HandoffStatus = "pending"
	HandoffAccepted  HandoffStatus = "accepted"
	HandoffCompleted HandoffStatus = "completed"
	HandoffFailed    HandoffStatus = "failed"
	HandoffCancelled HandoffStatus = "cancelled"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
)

type InsightType string

const (
	InsightDecision       InsightType = "decision"
	InsightRecommendation InsightType = "recommendation"
	InsightBlocker        InsightType = "blocker"
	InsightDiscovery      InsightType = "discovery"
)

// Handoff is one agent-to-agent task handoff.
type Handoff struct {
	ID             string
	FromAgent      string
	ToAgent        string
	CapabilityID   string
	Task           string
	Inputs         map[string]any
	ExpectedOutput map[string]any
	Priority       Priority
	TimeoutMS      int
	Status         HandoffStatus
	CreatedAt      time.Time
	ResultTraceID  string
	ErrorMessage   string
}

func (h *Handoff) validate() error {
	switch h.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return fmt.Errorf("storage: invalid priority %q", h.Priority)
	}
	switch h.Status {
	case HandoffPending, HandoffAccepted, HandoffCompleted, HandoffFailed, HandoffCancelled:
	default:
		return fmt.Errorf("storage: invalid handoff status %q", h.Status)
	}
	return nil
}

// Session is one agent work session against a project.
type Session struct {
	SessionID         string
	AgentID           string
	ProjectID         string
	AgentType         string
	StartedAt         time.Time
	EndedAt           time.Time
	Status            SessionStatus
	CapabilitiesUsed  []string
	InsightCount      int
	TasksCompleted    []string
}

func (s *Session) validate() error {
	switch s.Status {
	case SessionActive, SessionCompleted, SessionAborted:
	default:
		return fmt.Errorf("storage: invalid session status %q", s.Status)
	}
	return nil
}

// Insight is one recorded agent observation about a project.
type Insight struct {
	ID          string
	ProjectID   string
	AgentID     string
	InsightType InsightType
	Summary     string
	Confidence  float64
	Timestamp   time.Time
	TraceID     string
	AppliesTo   []string
	Context     map[string]any
}

func (i *Insight) validate() error {
	switch i.InsightType {
	case InsightDecision, InsightRecommendation, InsightBlocker, InsightDiscovery:
	default:
		return fmt.Errorf("storage: invalid insight type %q", i.InsightType)
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("storage: confidence must be in [0,1], got %v", i.Confidence)
	}
	return nil
}

// HandoffFilter narrows ListHandoffs; zero-value fields are unfiltered.
type HandoffFilter struct {
	Status  HandoffStatus
	ToAgent string
}

// SessionFilter narrows ListSessions; zero-value fields are unfiltered.
type SessionFilter struct {
	Status SessionStatus
}

// InsightFilter narrows ListInsights; zero-value fields are unfiltered.
type InsightFilter struct {
	InsightType InsightType
	Since       time.Time
	Limit       int
}

// Backend is the storage interface every backend implements: handoff
// queueing, session tracking, insight recording, and per-project
// guidance, all scoped by project_id within a backend-wide namespace.
type Backend interface {
	SaveHandoff(projectID string, h Handoff) error
	GetHandoff(projectID, handoffID string) (Handoff, bool, error)
	UpdateHandoffStatus(projectID, handoffID string, status HandoffStatus, resultTraceID, errorMessage string) error
	ListHandoffs(projectID string, filter HandoffFilter) ([]Handoff, error)

	SaveSession(s Session) error
	GetSession(projectID, sessionID string) (Session, bool, error)
	UpdateSession(s Session) error
	ListSessions(projectID string, filter SessionFilter) ([]Session, error)

	SaveInsight(i Insight) error
	ListInsights(projectID string, filter InsightFilter) ([]Insight, error)

	GetGuidance(projectID string) (map[string]any, error)
	UpdateGuidance(projectID string, guidance map[string]any) error
}
