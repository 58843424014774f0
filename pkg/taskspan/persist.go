package taskspan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// store is the on-disk persistence layer for a single project's task
// spans: <state_dir>/<project>/<task_id>.json for active spans and
// <state_dir>/<project>/completed/<task_id>.json for terminal ones.
//
// Mirrors the teacher's temp-file-then-rename pattern
// (internal/dispatch/dispatch.go) and original_source's
// StateManager._init_state_directory fallback behavior.
type store struct {
	projectDir string
	completedDir string
	degraded   bool
	logger     *slog.Logger
}

func newStore(primaryBaseDir, fallbackBaseDir, project string, logger *slog.Logger) (*store, error) {
	s, err := tryInitDir(primaryBaseDir, project)
	if err == nil {
		completed := filepath.Join(s.projectDir, "completed")
		if mkErr := os.MkdirAll(completed, 0o700); mkErr != nil {
			logger.Warn("taskspan: cannot create completed dir, falling back", "error", mkErr)
		} else {
			s.completedDir = completed
			s.logger = logger
			return s, nil
		}
	} else {
		logger.Warn("taskspan: primary state directory not writable, falling back to temp dir", "error", err, "primary", primaryBaseDir)
	}

	fb, err := tryInitDir(fallbackBaseDir, project)
	if err != nil {
		return nil, fmt.Errorf("taskspan: fallback state directory also unusable: %w", err)
	}
	fb.degraded = true
	fb.logger = logger
	completed := filepath.Join(fb.projectDir, "completed")
	if mkErr := os.MkdirAll(completed, 0o700); mkErr != nil {
		return nil, fmt.Errorf("taskspan: cannot create fallback completed dir: %w", mkErr)
	}
	fb.completedDir = completed
	return fb, nil
}

func tryInitDir(baseDir, project string) (*store, error) {
	projectDir := filepath.Join(baseDir, project)
	if err := os.MkdirAll(projectDir, 0o700); err != nil {
		return nil, err
	}
	probe := filepath.Join(projectDir, ".write_test")
	if err := os.WriteFile(probe, []byte{}, 0o600); err != nil {
		return nil, err
	}
	_ = os.Remove(probe)
	return &store{projectDir: projectDir}, nil
}

// Degraded reports whether the store fell back to a temp-directory
// location because the primary state directory was not writable.
func (s *store) Degraded() bool { return s.degraded }

func (s *store) activePath(taskID string) string {
	return filepath.Join(s.projectDir, taskID+".json")
}

func (s *store) completedPath(taskID string) string {
	return filepath.Join(s.completedDir, taskID+".json")
}

// Save atomically writes a span's persisted state: marshal, write to a
// temp file in the same directory, then rename. I/O failures are
// logged at error level and never returned to mutation callers per
// spec.md §7 "Fatal" handling — the caller keeps the in-memory state
// and a subsequent read may return the pre-mutation state.
func (s *store) Save(span *Span) {
	ps := toPersisted(span)
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		s.logger.Error("taskspan: marshal span state failed", "task_id", span.TaskID, "error", err)
		return
	}
	if err := atomicWrite(s.activePath(span.TaskID), data); err != nil {
		s.logger.Error("taskspan: persist span state failed", "task_id", span.TaskID, "error", err)
	}
}

// Archive moves a terminal span's active file into the completed dir.
func (s *store) Archive(span *Span) {
	s.Save(span) // ensure the final mutation (end_time etc.) is flushed first
	active := s.activePath(span.TaskID)
	completed := s.completedPath(span.TaskID)
	data, err := os.ReadFile(active)
	if err != nil {
		s.logger.Error("taskspan: reading active state for archive failed", "task_id", span.TaskID, "error", err)
		return
	}
	if err := atomicWrite(completed, data); err != nil {
		s.logger.Error("taskspan: writing completed state failed", "task_id", span.TaskID, "error", err)
		return
	}
	if err := os.Remove(active); err != nil && !os.IsNotExist(err) {
		s.logger.Error("taskspan: removing active state after archive failed", "task_id", span.TaskID, "error", err)
	}
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadActive loads every active span file from the project directory,
// migrating and rewriting any at a stale schema version. A corrupt
// JSON file is treated as a missing record (logged once), per spec.md
// §7 "Fatal" handling.
func (s *store) LoadActive() (map[string]*Span, error) {
	entries, err := os.ReadDir(s.projectDir)
	if err != nil {
		return nil, fmt.Errorf("taskspan: reading project state dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make(map[string]*Span, len(names))
	for _, name := range names {
		path := filepath.Join(s.projectDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Error("taskspan: reading state file failed, treating as missing", "path", path, "error", err)
			continue
		}
		ps, migrated, err := decodePersisted(data)
		if err != nil {
			s.logger.Error("taskspan: corrupt state file, treating as missing", "path", path, "error", err)
			continue
		}
		span, err := fromPersisted(ps)
		if err != nil {
			s.logger.Error("taskspan: reconstructing span from state failed, treating as missing", "path", path, "error", err)
			continue
		}
		out[span.TaskID] = span
		if migrated {
			s.Save(span)
		}
	}
	return out, nil
}
