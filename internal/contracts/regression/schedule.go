package regression

import (
	"log/slog"

	"github.com/robfig/cron"
)

// CheckFunc runs one regression gate check cycle (load baseline, run
// current Validator/Detector, Gate.Check, persist the new baseline)
// and reports whether it passed. Errors are logged, not returned —
// ScheduleRegressionCheck is a fire-and-forget background job.
type CheckFunc func() (passed bool, err error)

// Scheduler runs a CheckFunc on a cron schedule (e.g. "@daily",
// "0 0 */6 * * *") so regression gates can catch drift between CI runs,
// not only on them. Grounded on the teacher's own cadence/ceremony
// scheduling idiom, generalized from a bespoke ticker loop to
// github.com/robfig/cron v1's default parser.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler constructs a Scheduler; call Start to begin running.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cron: cron.New(), logger: logger}
}

// ScheduleRegressionCheck registers check to run on spec (an
// "@daily"/"@hourly"-style descriptor or a cron expression in
// robfig/cron v1's format, whose first field is seconds).
func (s *Scheduler) ScheduleRegressionCheck(spec string, check CheckFunc) error {
	return s.cron.AddFunc(spec, func() {
		passed, err := check()
		if err != nil {
			s.logger.Error("regression check failed to run", "error", err)
			return
		}
		if !passed {
			s.logger.Warn("scheduled regression check failed")
			return
		}
		s.logger.Info("scheduled regression check passed")
	})
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler, letting any in-flight job finish.
func (s *Scheduler) Stop() { s.cron.Stop() }
