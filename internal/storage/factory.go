package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// BackendType is one of the storage backend kinds original_source's
// StorageType enum names. Kubernetes is not carried forward (Non-goal).
type BackendType string

const (
	BackendFile   BackendType = "file"
	BackendMemory BackendType = "memory"
)

// Options configures New.
type Options struct {
	Type      BackendType // empty autodetects
	Namespace string      // defaults to "default"
	BaseDir   string      // FileStore only; defaults to $CONTEXTCORE_STORAGE_DIR or ~/.contextcore/storage
	Logger    *slog.Logger
}

// New constructs a Backend per opts, auto-detecting FileStore when
// Type is unset (this module never runs in-cluster, so unlike
// _detect_storage_type's Kubernetes-first probe, file storage is the
// only autodetected backend).
func New(opts Options) (Backend, error) {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch opts.Type {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		baseDir := opts.BaseDir
		if baseDir == "" {
			baseDir = os.Getenv("CONTEXTCORE_STORAGE_DIR")
		}
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("storage: resolving home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".contextcore", "storage")
		}
		return NewFileStore(baseDir, opts.Namespace, opts.Logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend type %q", opts.Type)
	}
}
