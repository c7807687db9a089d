package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusAccepted, StatusEnRoute, true},
		{StatusAccepted, StatusOnSite, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusAccepted, StatusCompleted, false},
		{StatusEnRoute, StatusOnSite, true},
		{StatusEnRoute, StatusInProgress, true},
		{StatusOnSite, StatusInProgress, true},
		{StatusOnSite, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusPending, StatusEnRoute, false},
		{StatusPending, StatusAccepted, false}, // claims bypass the FSM
		{StatusPending, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusAccepted, StatusAccepted, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusCompleted.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Fatalf("completed/cancelled should be terminal")
	}
	if StatusPending.IsTerminal() || StatusInProgress.IsTerminal() {
		t.Fatalf("pending/in_progress should not be terminal")
	}
	for _, s := range []Status{StatusAccepted, StatusEnRoute, StatusOnSite, StatusInProgress} {
		if !s.IsActive() {
			t.Errorf("%s should be active", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusCompleted, StatusCancelled} {
		if s.IsActive() {
			t.Errorf("%s should not be active", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("en_route"); err != nil || s != StatusEnRoute {
		t.Fatalf("ParseStatus(en_route) = %v, %v", s, err)
	}
	if _, err := ParseStatus("en_camino"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestOwnedBy(t *testing.T) {
	j := Job{ProfessionalID: "pro-1"}
	if !j.OwnedBy("pro-1") {
		t.Fatalf("expected owned by pro-1")
	}
	if j.OwnedBy("pro-2") {
		t.Fatalf("not owned by pro-2")
	}
	if (Job{}).OwnedBy("") {
		t.Fatalf("unassigned job is owned by nobody")
	}
}
