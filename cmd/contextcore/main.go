// Command contextcore is the thin CLI surface over the Task Span
// Engine, the Contract Enforcement Framework, and the plan ingestion
// pipeline: hand-rolled flag-based subcommand dispatch, matching the
// teacher's own cmd/cortex/main.go idiom (stdlib flag, no cobra) even
// though other packs in the corpus reach for spf13/cobra — we follow
// the chosen teacher here, since the CLI surface itself is a thin
// external collaborator, not a spec focus.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/contextcore/core/internal/config"
	"github.com/contextcore/core/internal/contracts/loader"
	"github.com/contextcore/core/internal/contracts/postexec"
	"github.com/contextcore/core/internal/contracts/regression"
	"github.com/contextcore/core/internal/planpipeline/analyze"
	"github.com/contextcore/core/internal/planpipeline/fix"
	"github.com/contextcore/core/internal/planpipeline/manifest"
	"github.com/contextcore/core/internal/planpipeline/provenance"
	"github.com/contextcore/core/internal/storage"
	"github.com/contextcore/core/pkg/taskspan"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	shutdownTracing, err := initTracing(context.Background(), "contextcore")
	if err != nil {
		fmt.Fprintln(os.Stderr, "contextcore:", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	switch os.Args[1] {
	case "validate-contract":
		err = runValidateContract(os.Args[2:])
	case "analyze-plan":
		err = runAnalyzePlan(os.Args[2:])
	case "fix-plan":
		err = runFixPlan(os.Args[2:])
	case "init-manifest":
		err = runInitManifest(os.Args[2:])
	case "task":
		err = runTask(os.Args[2:], logger)
	case "regression-check":
		err = runRegressionCheck(os.Args[2:], logger)
	case "handoff":
		err = runHandoff(os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "contextcore:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: contextcore <command> [flags]

commands:
  validate-contract  -path <contract.yaml>
  analyze-plan       -plan <plan.md>
  fix-plan           -plan <plan.md>
  init-manifest      -name <project> -plan <plan.md> [-requirements <requirements.md>] [-root <project-root>] [-provenance <run-provenance.json>]
  task               <start|complete|block|progress> -project <id> -task <id> ...
  regression-check   -config <contextcore.toml> -project <id> -label <label>
  handoff            <save|list> -config <contextcore.toml> -project <id> ...`)
}

func runValidateContract(args []string) error {
	fs := flag.NewFlagSet("validate-contract", flag.ExitOnError)
	path := fs.String("path", "", "path to a context contract YAML document")
	fs.Parse(args)
	if *path == "" {
		return fmt.Errorf("validate-contract: -path is required")
	}
	contract, err := loader.LoadContextContract(*path)
	if err != nil {
		return err
	}
	fmt.Printf("contract %q is valid: %d phase(s), %d chain(s)\n", contract.Pipeline, len(contract.Phases), len(contract.Chains))
	return nil
}

func runAnalyzePlan(args []string) error {
	fs := flag.NewFlagSet("analyze-plan", flag.ExitOnError)
	planPath := fs.String("plan", "", "path to a plan document")
	fs.Parse(args)
	if *planPath == "" {
		return fmt.Errorf("analyze-plan: -plan is required")
	}
	content, err := os.ReadFile(*planPath)
	if err != nil {
		return err
	}
	result := analyze.Analyze(string(content), *planPath, nil, time.Now().UTC())
	return json.NewEncoder(os.Stdout).Encode(result)
}

func runFixPlan(args []string) error {
	fs := flag.NewFlagSet("fix-plan", flag.ExitOnError)
	planPath := fs.String("plan", "", "path to a plan document")
	write := fs.Bool("write", false, "write the fixed content back to -plan")
	fs.Parse(args)
	if *planPath == "" {
		return fmt.Errorf("fix-plan: -plan is required")
	}
	content, err := os.ReadFile(*planPath)
	if err != nil {
		return err
	}
	result := fix.Apply(string(content), *planPath)
	if *write {
		if err := os.WriteFile(*planPath, []byte(result.RemediatedContent), 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("fixed %d of %d flagged check(s)\n", result.FixedCount, len(result.Actions))
	for _, a := range result.Actions {
		fmt.Printf("  - %s [%s]: %s\n", a.CheckID, a.Status, a.Reason)
	}
	return nil
}

func runInitManifest(args []string) error {
	fs := flag.NewFlagSet("init-manifest", flag.ExitOnError)
	name := fs.String("name", "", "project name")
	planPath := fs.String("plan", "", "path to a plan document")
	requirementsPath := fs.String("requirements", "", "path to a requirements document")
	projectRoot := fs.String("root", "", "project root directory, used to infer the deployment target name")
	questions := fs.Bool("questions", true, "emit guidance.questions inferred from '?'-terminated lines")
	provenancePath := fs.String("provenance", "", "path to run-provenance.json to extend (skipped if empty)")
	fs.Parse(args)
	if *name == "" || *planPath == "" {
		return fmt.Errorf("init-manifest: -name and -plan are required")
	}

	planText, err := os.ReadFile(*planPath)
	if err != nil {
		return err
	}
	var requirementsText []byte
	if *requirementsPath != "" {
		if requirementsText, err = os.ReadFile(*requirementsPath); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	base := manifest.BuildTemplate(*name, now)
	result := manifest.Infer(base, string(planText), string(requirementsText), *projectRoot, *questions)
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, "init-manifest:", w)
	}

	if *provenancePath != "" {
		entry, err := provenance.BuildEntry("manifest_export", provenance.RoleOutputContracts,
			"v2 context manifest produced from plan + requirements inference",
			"contextcore init-manifest", *planPath, result.Manifest,
			[]string{"task_span_engine", "contract_framework"}, "", now)
		if err != nil {
			return err
		}
		if _, err := provenance.Extend(*provenancePath, []provenance.Entry{entry}, now); err != nil {
			return err
		}
	}
	return nil
}

func runTask(args []string, logger *slog.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("task: a subcommand (start|complete|block|progress) is required")
	}
	sub := args[0]
	fs := flag.NewFlagSet("task "+sub, flag.ExitOnError)
	project := fs.String("project", "default", "project id")
	taskID := fs.String("task", "", "task id")
	title := fs.String("title", "", "task title (start only)")
	reason := fs.String("reason", "", "reason (block only)")
	percent := fs.Int("percent", 0, "percent complete (progress only)")
	stateDir := fs.String("state-dir", config.ExpandHome("~/.contextcore"), "task span state directory")
	fs.Parse(args[1:])
	if *taskID == "" {
		return fmt.Errorf("task %s: -task is required", sub)
	}

	mgr, err := taskspan.NewManager(*project, *stateDir, "", "contextcore", logger, nil, newOTelTracer("contextcore", logger))
	if err != nil {
		return err
	}

	switch sub {
	case "start":
		_, err = mgr.StartTask(*taskID, *title, taskspan.KindTask, taskspan.PriorityMedium)
	case "complete":
		err = mgr.CompleteTask(*taskID)
	case "block":
		err = mgr.BlockTask(*taskID, *reason, nil)
	case "progress":
		err = mgr.SetProgress(*taskID, *percent, taskspan.ProgressManual)
	default:
		return fmt.Errorf("task: unknown subcommand %q", sub)
	}
	return err
}

func runRegressionCheck(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("regression-check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to contextcore.toml")
	project := fs.String("project", "default", "project id")
	label := fs.String("label", "", "baseline label, e.g. <contract>.<phase>")
	completeness := fs.Float64("completeness", 100, "current completeness percentage")
	chainsBroken := fs.Int("chains-broken", 0, "current broken chain count")
	healthScore := fs.Float64("health", 100, "current health score")
	fs.Parse(args)
	if *configPath == "" || *label == "" {
		return fmt.Errorf("regression-check: -config and -label are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	store, err := regression.OpenBaselineStore(cfg.ResolveRegressionBaseline(*project))
	if err != nil {
		return err
	}
	defer store.Close()

	current := &postexec.Report{CompletenessPct: *completeness, ChainsBroken: *chainsBroken}
	currentHealth := &regression.HealthScore{Overall: *healthScore}

	var baselineReport *postexec.Report
	var baselineHealth *regression.HealthScore
	if baseline, ok, err := store.Load(*label); err != nil {
		return err
	} else if ok {
		baselineReport, baselineHealth = baseline.ToReportAndHealth()
	}

	gate := regression.NewGate(regression.Thresholds{
		MinHealthScore:      cfg.Regression.MaxHealthRegression, // conservative floor derived from config
		MaxCompletenessDrop: 100 - cfg.Regression.MinCompletenessPct,
	}, cfg.Regression.AllowBreakingDrift, logger)

	result := gate.Check(baselineReport, current, nil, baselineHealth, currentHealth)
	if err := store.Record(*label, current, currentHealth, time.Now().UTC()); err != nil {
		return err
	}

	fmt.Printf("regression gate: passed=%v (%d/%d checks)\n", result.Passed, result.TotalChecks-result.FailedChecks, result.TotalChecks)
	for _, f := range result.Failures() {
		fmt.Printf("  FAILED %s: %s\n", f.CheckID, f.Message)
	}
	if !result.Passed {
		os.Exit(1)
	}
	return nil
}

func runHandoff(args []string, logger *slog.Logger) error {
	if len(args) < 1 {
		return fmt.Errorf("handoff: a subcommand (save|list) is required")
	}
	sub := args[0]
	fs := flag.NewFlagSet("handoff "+sub, flag.ExitOnError)
	configPath := fs.String("config", "", "path to contextcore.toml")
	project := fs.String("project", "default", "project id")
	id := fs.String("id", "", "handoff id (save only)")
	fromAgent := fs.String("from", "", "originating agent (save only)")
	toAgent := fs.String("to", "", "receiving agent (save only)")
	task := fs.String("task", "", "handoff task description (save only)")
	fs.Parse(args[1:])
	if *configPath == "" {
		return fmt.Errorf("handoff %s: -config is required", sub)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	backend, err := storage.New(storage.Options{
		Type:      storage.BackendType(cfg.Storage.Backend),
		Namespace: cfg.ResolveNamespace(*project),
		BaseDir:   cfg.Storage.BaseDir,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	switch sub {
	case "save":
		if *id == "" {
			return fmt.Errorf("handoff save: -id is required")
		}
		return backend.SaveHandoff(*project, storage.Handoff{
			ID:        *id,
			FromAgent: *fromAgent,
			ToAgent:   *toAgent,
			Task:      *task,
			Status:    storage.HandoffPending,
			CreatedAt: time.Now().UTC(),
		})
	case "list":
		handoffs, err := backend.ListHandoffs(*project, storage.HandoffFilter{})
		if err != nil {
			return err
		}
		for _, h := range handoffs {
			fmt.Printf("%s  %s -> %s  %s  %s\n", h.ID, h.FromAgent, h.ToAgent, h.Status, h.Task)
		}
		return nil
	default:
		return fmt.Errorf("handoff: unknown subcommand %q", sub)
	}
}
