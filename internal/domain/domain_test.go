package domain

import (
	"encoding/json"
	"testing"
)

func TestJobTransitionsAreMonotonic(t *testing.T) {
	for from, targets := range jobTransitions {
		for _, to := range targets {
			if to.Rank() <= from.Rank() {
				t.Fatalf("transition %s -> %s moves backwards", from, to)
			}
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		ok       bool
	}{
		{JobDraft, JobPendingApproval, true},
		{JobDraft, JobActive, false},
		{JobPendingApproval, JobActive, true},
		{JobActive, JobInProgress, true},
		{JobInProgress, JobDisputed, true},
		{JobDelivered, JobCompleted, true},
		{JobDisputed, JobCompleted, true},
		{JobCompleted, JobClosed, true},
		{JobClosed, JobDraft, false},
		{JobActive, JobDisputed, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestAmountJSON(t *testing.T) {
	var v struct {
		Budget Amount `json:"budget"`
	}
	for _, in := range []string{`{"budget":500}`, `{"budget":"500.004"}`, `{"budget":499.999}`} {
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != `{"budget":500.00}` {
			t.Fatalf("%s round-tripped to %s", in, out)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseDisputeStatus("under_review"); err == nil {
		t.Fatal("under_review is not a dispute status")
	}
	if s, err := ParseDisputeStatus(" IN_REVIEW "); err != nil || s != DisputeInReview {
		t.Fatalf("ParseDisputeStatus: %v %v", s, err)
	}
	if _, err := ParseWinner("both"); err == nil {
		t.Fatal("expected unknown winner to fail")
	}
	if _, err := ParseServiceTier("premium_trust"); err == nil {
		t.Fatal("expected unknown tier to fail")
	}
	if !EscrowRefunded.Terminal() || EscrowDisputed.Terminal() {
		t.Fatal("unexpected escrow terminal states")
	}
}
