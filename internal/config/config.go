// Package config loads and validates the Contextcore TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the root of the Contextcore deployment configuration: a
// TOML document of nested, `toml:"..."`-tagged sections, mirroring the
// teacher's own config shape but scoped to this module's domain
// (task-span state, contract enforcement, plan ingestion, storage)
// instead of agent dispatch.
type Config struct {
	General    General            `toml:"general"`
	Projects   map[string]Project `toml:"projects"`
	Storage    Storage            `toml:"storage"`
	Contracts  Contracts          `toml:"contracts"`
	Regression Regression         `toml:"regression"`
	API        API                `toml:"api"`
}

// General covers process-wide state: where on-disk state lives, how
// verbosely it logs, and the namespace used to partition multi-tenant
// deployments.
type General struct {
	StateDir  string   `toml:"state_dir"`  // root for task-span / storage state (default ~/.contextcore)
	LockFile  string   `toml:"lock_file"`  // single-instance lock, empty disables locking
	LogLevel  string   `toml:"log_level"`  // debug, info, warn, error
	Namespace string   `toml:"namespace"`  // storage/partition namespace (default "default")
	ProjectID string   `toml:"project_id"` // default project id when a caller does not specify one
}

// Project holds per-project overrides layered on top of General/Storage/
// Contracts/Regression defaults.
type Project struct {
	Enabled             bool     `toml:"enabled"`
	Namespace           string   `toml:"namespace"`             // overrides General.Namespace
	ContractSearchPaths []string `toml:"contract_search_paths"` // overrides Contracts.SearchPaths
	RegressionBaseline  string   `toml:"regression_baseline"`   // overrides Regression.BaselineDB
}

// Storage selects and configures the persistence Backend (internal/storage).
type Storage struct {
	Backend   string `toml:"backend"`   // "file", "memory"; empty autodetects file
	BaseDir   string `toml:"base_dir"`  // FileStore root; defaults to <General.StateDir>/storage
	Namespace string `toml:"namespace"` // defaults to General.Namespace; ResolveNamespace, which picks the storage namespace, does not read it
}

// Contracts configures where context/schema-compat contract documents
// are discovered and how strictly they are loaded.
type Contracts struct {
	SearchPaths       []string `toml:"search_paths"`        // directories walked for *.contract.yaml documents
	SchemaCompatPaths []string `toml:"schema_compat_paths"` // directories walked for compatibility-spec documents
	StrictMode        bool     `toml:"strict_mode"`         // default true; the contract loader rejects unknown keys whatever this is set to
}

// Regression configures the postexec regression gate: where its
// baseline store lives and the values the regression-check command
// builds the Thresholds it passes to regression.NewGate from.
type Regression struct {
	Enabled             bool     `toml:"enabled"`
	BaselineDB          string   `toml:"baseline_db"`           // sqlite file backing the baseline report/health-score store
	AllowBreakingDrift  bool     `toml:"allow_breaking_drift"`  // passed through to regression.NewGate
	CheckSchedule       string   `toml:"check_schedule"`        // robfig/cron expression for periodic drift checks
	MinCompletenessPct  float64  `toml:"min_completeness_pct"`
	MaxHealthRegression float64  `toml:"max_health_regression"`
	MaxLatencyRegressP99Pct float64 `toml:"max_latency_regression_p99_pct"`
}

// API configures the thin control-plane surface (webhook intake,
// manifest/provenance inspection endpoints) that sits in front of the
// Task Span Engine / Contract Enforcement Framework. Only the contract
// lives in this repo, per spec.md's Non-goals around the webhook router
// and dashboard; this section still needs to exist so that contract can
// be configured and RBAC-enforced.
type API struct {
	Bind     string      `toml:"bind"`
	Security APISecurity `toml:"security"`
}

type APISecurity struct {
	Enabled          bool     `toml:"enabled"`
	AllowedTokens    []string `toml:"allowed_tokens"`
	RequireLocalOnly bool     `toml:"require_local_only"`
	AuditLog         string   `toml:"audit_log"`
}

// Clone returns a deep copy of cfg so callers can safely mutate the result.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	out := *cfg
	out.Projects = cloneProjects(cfg.Projects)
	out.Contracts.SearchPaths = cloneStringSlice(cfg.Contracts.SearchPaths)
	out.Contracts.SchemaCompatPaths = cloneStringSlice(cfg.Contracts.SchemaCompatPaths)
	out.API.Security.AllowedTokens = cloneStringSlice(cfg.API.Security.AllowedTokens)
	return &out
}

func cloneProjects(in map[string]Project) map[string]Project {
	if in == nil {
		return nil
	}
	out := make(map[string]Project, len(in))
	for k, v := range in {
		v.ContractSearchPaths = cloneStringSlice(v.ContractSearchPaths)
		out[k] = v
	}
	return out
}

func cloneStringSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Load reads and validates the TOML document at path, applying defaults
// for any field TOML decoding left at its zero value.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	applyDefaults(&cfg, md)
	normalizePaths(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}
	return &cfg, nil
}

// Reload re-reads path, returning a fresh validated Config.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager loads path and wraps the result in a ConfigManager.
func LoadManager(path string) (ConfigManager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewManager(cfg), nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.Namespace == "" {
		cfg.General.Namespace = "default"
	}
	if cfg.General.ProjectID == "" {
		cfg.General.ProjectID = "default"
	}
	if cfg.General.StateDir == "" {
		cfg.General.StateDir = ExpandHome("~/.contextcore")
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Namespace == "" {
		cfg.Storage.Namespace = cfg.General.Namespace
	}
	if cfg.Storage.BaseDir == "" {
		cfg.Storage.BaseDir = filepath.Join(cfg.General.StateDir, "storage")
	}

	if !md.IsDefined("contracts", "strict_mode") {
		cfg.Contracts.StrictMode = true
	}
	if len(cfg.Contracts.SearchPaths) == 0 {
		cfg.Contracts.SearchPaths = []string{filepath.Join(cfg.General.StateDir, "contracts")}
	}

	if !md.IsDefined("regression", "enabled") {
		cfg.Regression.Enabled = true
	}
	if cfg.Regression.BaselineDB == "" {
		cfg.Regression.BaselineDB = filepath.Join(cfg.General.StateDir, "regression-baseline.db")
	}
	if cfg.Regression.CheckSchedule == "" {
		cfg.Regression.CheckSchedule = "@daily"
	}
	if cfg.Regression.MinCompletenessPct == 0 {
		cfg.Regression.MinCompletenessPct = 95.0
	}
	if cfg.Regression.MaxHealthRegression == 0 {
		cfg.Regression.MaxHealthRegression = 5.0
	}
	if cfg.Regression.MaxLatencyRegressP99Pct == 0 {
		cfg.Regression.MaxLatencyRegressP99Pct = 20.0
	}

	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8765"
	}

	for name, project := range cfg.Projects {
		if project.Namespace == "" {
			project.Namespace = cfg.General.Namespace
		}
		cfg.Projects[name] = project
	}
}

func normalizePaths(cfg *Config) {
	cfg.General.StateDir = ExpandHome(cfg.General.StateDir)
	cfg.General.LockFile = ExpandHome(cfg.General.LockFile)
	cfg.Storage.BaseDir = ExpandHome(cfg.Storage.BaseDir)
	cfg.Regression.BaselineDB = ExpandHome(cfg.Regression.BaselineDB)
	cfg.API.Security.AuditLog = ExpandHome(cfg.API.Security.AuditLog)
	for i, p := range cfg.Contracts.SearchPaths {
		cfg.Contracts.SearchPaths[i] = ExpandHome(p)
	}
	for i, p := range cfg.Contracts.SchemaCompatPaths {
		cfg.Contracts.SchemaCompatPaths[i] = ExpandHome(p)
	}
}

func isLocalBind(bind string) bool {
	for _, prefix := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if strings.HasPrefix(bind, prefix) {
			return true
		}
	}
	return bind == "" || strings.HasPrefix(bind, "unix:")
}

func validate(cfg *Config) error {
	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("general.log_level must be one of debug|info|warn|error, got %q", cfg.General.LogLevel)
	}

	switch cfg.Storage.Backend {
	case "file", "memory":
	default:
		return fmt.Errorf("storage.backend must be one of file|memory, got %q", cfg.Storage.Backend)
	}

	if cfg.Regression.MinCompletenessPct < 0 || cfg.Regression.MinCompletenessPct > 100 {
		return fmt.Errorf("regression.min_completeness_pct must be within [0,100], got %v", cfg.Regression.MinCompletenessPct)
	}
	if cfg.Regression.MaxHealthRegression < 0 {
		return fmt.Errorf("regression.max_health_regression must be >= 0, got %v", cfg.Regression.MaxHealthRegression)
	}

	if cfg.API.Security.Enabled && len(cfg.API.Security.AllowedTokens) == 0 {
		return fmt.Errorf("api.security.enabled requires at least one api.security.allowed_tokens entry")
	}
	if !cfg.API.Security.Enabled && !cfg.API.Security.RequireLocalOnly && !isLocalBind(cfg.API.Bind) {
		return fmt.Errorf("api.bind %q is non-local and api.security.enabled is false: set api.security.require_local_only or enable auth", cfg.API.Bind)
	}

	var names []string
	for name := range cfg.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		project := cfg.Projects[name]
		if project.RegressionBaseline != "" && !filepath.IsAbs(ExpandHome(project.RegressionBaseline)) {
			return fmt.Errorf("projects.%s.regression_baseline must be an absolute path", name)
		}
	}

	return nil
}

// ExpandHome expands a leading "~" to the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResolveNamespace returns the effective storage namespace for project,
// falling back to General.Namespace when the project has none declared.
func (cfg *Config) ResolveNamespace(project string) string {
	if p, ok := cfg.Projects[project]; ok && p.Namespace != "" {
		return p.Namespace
	}
	return cfg.General.Namespace
}

// ResolveContractSearchPaths returns the effective contract search paths
// for project, falling back to Contracts.SearchPaths.
func (cfg *Config) ResolveContractSearchPaths(project string) []string {
	if p, ok := cfg.Projects[project]; ok && len(p.ContractSearchPaths) > 0 {
		return p.ContractSearchPaths
	}
	return cfg.Contracts.SearchPaths
}

// ResolveRegressionBaseline returns the effective baseline DB path for
// project, falling back to Regression.BaselineDB.
func (cfg *Config) ResolveRegressionBaseline(project string) string {
	if p, ok := cfg.Projects[project]; ok && p.RegressionBaseline != "" {
		return p.RegressionBaseline
	}
	return cfg.Regression.BaselineDB
}
