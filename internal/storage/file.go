package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileStore is a JSON-file-backed Backend for local development and
// single-machine deployments, grounded on
// original_source/src/contextcore/storage/file.py's on-disk layout:
//
//	<baseDir>/<namespace>/<project_id>/handoffs/<id>.json
//	<baseDir>/<namespace>/<project_id>/sessions/<id>.json
//	<baseDir>/<namespace>/<project_id>/insights/<id>.json
//	<baseDir>/<namespace>/<project_id>/guidance.json
type FileStore struct {
	namespaceDir string
	logger       *slog.Logger
}

func NewFileStore(baseDir, namespace string, logger *slog.Logger) (*FileStore, error) {
	namespaceDir := filepath.Join(baseDir, namespace)
	if err := os.MkdirAll(namespaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating namespace dir %s: %w", namespaceDir, err)
	}
	return &FileStore{namespaceDir: namespaceDir, logger: logger}, nil
}

func (f *FileStore) projectDir(projectID string) (string, error) {
	dir := filepath.Join(f.namespaceDir, projectID)
	return dir, os.MkdirAll(dir, 0o755)
}

func (f *FileStore) subDir(projectID, sub string) (string, error) {
	project, err := f.projectDir(projectID)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(project, sub)
	return dir, os.MkdirAll(dir, 0o755)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (f *FileStore) SaveHandoff(projectID string, h Handoff) error {
	if err := h.validate(); err != nil {
		return err
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	dir, err := f.subDir(projectID, "handoffs")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, h.ID+".json")
	if err := writeJSON(path, h); err != nil {
		return err
	}
	f.logger.Debug("saved handoff", "project_id", projectID, "handoff_id", h.ID, "path", path)
	return nil
}

func (f *FileStore) GetHandoff(projectID, handoffID string) (Handoff, bool, error) {
	dir, err := f.subDir(projectID, "handoffs")
	if err != nil {
		return Handoff{}, false, err
	}
	var h Handoff
	ok, err := readJSON(filepath.Join(dir, handoffID+".json"), &h)
	return h, ok, err
}

func (f *FileStore) UpdateHandoffStatus(projectID, handoffID string, status HandoffStatus, resultTraceID, errorMessage string) error {
	h, ok, err := f.GetHandoff(projectID, handoffID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("storage: handoff %s not found in project %s", handoffID, projectID)
	}
	h.Status = status
	if resultTraceID != "" {
		h.ResultTraceID = resultTraceID
	}
	if errorMessage != "" {
		h.ErrorMessage = errorMessage
	}
	return f.SaveHandoff(projectID, h)
}

func (f *FileStore) ListHandoffs(projectID string, filter HandoffFilter) ([]Handoff, error) {
	dir, err := f.subDir(projectID, "handoffs")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Handoff
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var h Handoff
		if _, err := readJSON(filepath.Join(dir, e.Name()), &h); err != nil {
			return nil, err
		}
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

func (f *FileStore) SaveSession(s Session) error {
	if err := s.validate(); err != nil {
		return err
	}
	dir, err := f.subDir(s.ProjectID, "sessions")
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, s.SessionID+".json"), s)
}

func (f *FileStore) GetSession(projectID, sessionID string) (Session, bool, error) {
	dir, err := f.subDir(projectID, "sessions")
	if err != nil {
		return Session{}, false, err
	}
	var s Session
	ok, err := readJSON(filepath.Join(dir, sessionID+".json"), &s)
	return s, ok, err
}

func (f *FileStore) UpdateSession(s Session) error {
	return f.SaveSession(s)
}

func (f *FileStore) ListSessions(projectID string, filter SessionFilter) ([]Session, error) {
	dir, err := f.subDir(projectID, "sessions")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Session
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var s Session
		if _, err := readJSON(filepath.Join(dir, e.Name()), &s); err != nil {
			return nil, err
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (f *FileStore) SaveInsight(i Insight) error {
	if err := i.validate(); err != nil {
		return err
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now().UTC()
	}
	dir, err := f.subDir(i.ProjectID, "insights")
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, i.ID+".json"), i)
}

func (f *FileStore) ListInsights(projectID string, filter InsightFilter) ([]Insight, error) {
	dir, err := f.subDir(projectID, "insights")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Insight
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var i Insight
		if _, err := readJSON(filepath.Join(dir, e.Name()), &i); err != nil {
			return nil, err
		}
		if filter.InsightType != "" && i.InsightType != filter.InsightType {
			continue
		}
		if !filter.Since.IsZero() && i.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp.Before(out[b].Timestamp) })
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *FileStore) GetGuidance(projectID string) (map[string]any, error) {
	dir, err := f.projectDir(projectID)
	if err != nil {
		return nil, err
	}
	var guidance map[string]any
	ok, err := readJSON(filepath.Join(dir, "guidance.json"), &guidance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{}, nil
	}
	return guidance, nil
}

func (f *FileStore) UpdateGuidance(projectID string, guidance map[string]any) error {
	dir, err := f.projectDir(projectID)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "guidance.json"), guidance)
}

var _ Backend = (*FileStore)(nil)
