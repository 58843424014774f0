package regression

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contextcore/core/internal/contracts/postexec"
)

// Baseline is one recorded (Report, HealthScore) pair for a label
// (typically "<contract>.<phase>" or a pipeline stage name), the unit
// a Gate.Check call compares its current run against.
type Baseline struct {
	Label           string
	RecordedAt      time.Time
	CompletenessPct float64
	ChainsBroken    int
	HealthOverall   float64
}

// BaselineStore persists Baselines in SQLite so a regression gate run
// in a fresh CI process can still compare against yesterday's numbers,
// grounded on the teacher's internal/store.Store (database/sql over
// modernc.org/sqlite, one small schema, hand-written SQL — no ORM).
// The on-disk file is a derived, rebuildable index: deleting it only
// costs the next run its comparison baseline, never correctness.
type BaselineStore struct {
	db *sql.DB
}

// OpenBaselineStore opens (creating if needed) the SQLite file at path
// and ensures its schema exists.
func OpenBaselineStore(path string) (*BaselineStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("regression: opening baseline store %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS baselines (
			label            TEXT PRIMARY KEY,
			recorded_at      TEXT NOT NULL,
			completeness_pct REAL NOT NULL,
			chains_broken    INTEGER NOT NULL,
			health_overall   REAL NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("regression: creating baseline schema: %w", err)
	}
	return &BaselineStore{db: db}, nil
}

func (s *BaselineStore) Close() error { return s.db.Close() }

// Record upserts the baseline for label from report/health, capturing
// now as the recorded_at timestamp.
func (s *BaselineStore) Record(label string, report *postexec.Report, health *HealthScore, now time.Time) error {
	var completeness float64
	var chainsBroken int
	if report != nil {
		completeness = report.CompletenessPct
		chainsBroken = report.ChainsBroken
	}
	var overall float64
	if health != nil {
		overall = health.Overall
	}
	_, err := s.db.Exec(`
		INSERT INTO baselines (label, recorded_at, completeness_pct, chains_broken, health_overall)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			recorded_at = excluded.recorded_at,
			completeness_pct = excluded.completeness_pct,
			chains_broken = excluded.chains_broken,
			health_overall = excluded.health_overall
	`, label, now.UTC().Format(time.RFC3339), completeness, chainsBroken, overall)
	if err != nil {
		return fmt.Errorf("regression: recording baseline %q: %w", label, err)
	}
	return nil
}

// Load returns the stored baseline for label, and false if none exists.
func (s *BaselineStore) Load(label string) (Baseline, bool, error) {
	row := s.db.QueryRow(`
		SELECT label, recorded_at, completeness_pct, chains_broken, health_overall
		FROM baselines WHERE label = ?`, label)

	var b Baseline
	var recordedAt string
	if err := row.Scan(&b.Label, &recordedAt, &b.CompletenessPct, &b.ChainsBroken, &b.HealthOverall); err != nil {
		if err == sql.ErrNoRows {
			return Baseline{}, false, nil
		}
		return Baseline{}, false, fmt.Errorf("regression: loading baseline %q: %w", label, err)
	}
	parsed, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return Baseline{}, false, fmt.Errorf("regression: parsing baseline timestamp for %q: %w", label, err)
	}
	b.RecordedAt = parsed
	return b, true, nil
}

// ToReportAndHealth reconstructs the minimal Report/HealthScore inputs
// Gate.Check needs from a stored Baseline.
func (b Baseline) ToReportAndHealth() (*postexec.Report, *HealthScore) {
	return &postexec.Report{
			CompletenessPct: b.CompletenessPct,
			ChainsBroken:    b.ChainsBroken,
		}, &HealthScore{
			Overall: b.HealthOverall,
		}
}
