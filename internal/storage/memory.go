package storage

import (
	"sort"
	"sync"
)

// MemoryStore is an in-process Backend, suitable for tests and for the
// "memory" storage type the original StorageType enum names.
type MemoryStore struct {
	mu        sync.RWMutex
	handoffs  map[string]map[string]Handoff // project -> handoff id -> handoff
	sessions  map[string]map[string]Session // project -> session id -> session
	insights  map[string][]Insight          // project -> insights, append order
	guidance  map[string]map[string]any     // project -> guidance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		handoffs: map[string]map[string]Handoff{},
		sessions: map[string]map[string]Session{},
		insights: map[string][]Insight{},
		guidance: map[string]map[string]any{},
	}
}

func (m *MemoryStore) SaveHandoff(projectID string, h Handoff) error {
	if err := h.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handoffs[projectID] == nil {
		m.handoffs[projectID] = map[string]Handoff{}
	}
	m.handoffs[projectID][h.ID] = h
	return nil
}

func (m *MemoryStore) GetHandoff(projectID, handoffID string) (Handoff, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handoffs[projectID][handoffID]
	return h, ok, nil
}

func (m *MemoryStore) UpdateHandoffStatus(projectID, handoffID string, status HandoffStatus, resultTraceID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handoffs[projectID][handoffID]
	if !ok {
		return nil
	}
	h.Status = status
	if resultTraceID != "" {
		h.ResultTraceID = resultTraceID
	}
	if errorMessage != "" {
		h.ErrorMessage = errorMessage
	}
	m.handoffs[projectID][handoffID] = h
	return nil
}

func (m *MemoryStore) ListHandoffs(projectID string, filter HandoffFilter) ([]Handoff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Handoff
	for _, h := range m.handoffs[projectID] {
		if filter.Status != "" && h.Status != filter.Status {
			continue
		}
		if filter.ToAgent != "" && h.ToAgent != filter.ToAgent {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveSession(s Session) error {
	if err := s.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.ProjectID] == nil {
		m.sessions[s.ProjectID] = map[string]Session{}
	}
	m.sessions[s.ProjectID][s.SessionID] = s
	return nil
}

func (m *MemoryStore) GetSession(projectID, sessionID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[projectID][sessionID]
	return s, ok, nil
}

func (m *MemoryStore) UpdateSession(s Session) error {
	return m.SaveSession(s)
}

func (m *MemoryStore) ListSessions(projectID string, filter SessionFilter) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.sessions[projectID] {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (m *MemoryStore) SaveInsight(i Insight) error {
	if err := i.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights[i.ProjectID] = append(m.insights[i.ProjectID], i)
	return nil
}

func (m *MemoryStore) ListInsights(projectID string, filter InsightFilter) ([]Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Insight
	for _, ins := range m.insights[projectID] {
		if filter.InsightType != "" && ins.InsightType != filter.InsightType {
			continue
		}
		if !filter.Since.IsZero() && ins.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, ins)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) GetGuidance(projectID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.guidance[projectID]
	if !ok {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) UpdateGuidance(projectID string, guidance map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guidance[projectID] = guidance
	return nil
}

var _ Backend = (*MemoryStore)(nil)
