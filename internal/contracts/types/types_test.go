package types

import "testing"

func TestWorst_PicksHighestPriorityStatus(t *testing.T) {
	cases := []struct {
		in   []PropagationStatus
		want PropagationStatus
	}{
		{[]PropagationStatus{PropagationPropagated, PropagationDefaulted}, PropagationDefaulted},
		{[]PropagationStatus{PropagationPropagated, PropagationFailed, PropagationPartial}, PropagationFailed},
		{nil, PropagationPropagated},
	}
	for _, c := range cases {
		if got := Worst(c.in); got != c.want {
			t.Fatalf("Worst(%v) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseSeverity_RejectsUnknownValue(t *testing.T) {
	if _, err := ParseSeverity("critical"); err == nil {
		t.Fatal("expected an error for an unrecognized severity")
	}
	got, err := ParseSeverity("blocking")
	if err != nil || got != SeverityBlocking {
		t.Fatalf("expected blocking, got %v err=%v", got, err)
	}
}

func TestParseEnforcementMode_RejectsUnknownValue(t *testing.T) {
	if _, err := ParseEnforcementMode("chaos"); err == nil {
		t.Fatal("expected an error for an unrecognized mode")
	}
}

func TestChainStatusForBudget_MapsEveryHealthValue(t *testing.T) {
	cases := map[BudgetHealth]ChainStatus{
		BudgetWithinBudget:   ChainIntact,
		BudgetOverAllocation: ChainDegraded,
		BudgetExhausted:      ChainBroken,
	}
	for health, want := range cases {
		if got := ChainStatusForBudget(health); got != want {
			t.Fatalf("ChainStatusForBudget(%s) = %s, want %s", health, got, want)
		}
	}
}
