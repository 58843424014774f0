package regression

import "testing"

func TestScheduler_RejectsInvalidCronSpec(t *testing.T) {
	s := NewScheduler(nil)
	err := s.ScheduleRegressionCheck("not a cron spec", func() (bool, error) { return true, nil })
	if err == nil {
		t.Fatal("expected an error for a malformed cron expression")
	}
}

func TestScheduler_AcceptsWellKnownSchedule(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.ScheduleRegressionCheck("@daily", func() (bool, error) { return true, nil }); err != nil {
		t.Fatalf("expected @daily to be accepted: %v", err)
	}
}
