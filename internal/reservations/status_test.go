package reservations

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := [][2]Status{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusCancelled},
		{StatusCompleted, StatusCancelled},
	}
	denied := [][2]Status{
		{StatusConfirmed, StatusPending},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusConfirmed},
		{StatusCancelled, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusCompleted},
	}
	for _, p := range allowed {
		if !CanTransition(p[0], p[1]) {
			t.Fatalf("expected %s -> %s allowed", p[0], p[1])
		}
	}
	for _, p := range denied {
		if CanTransition(p[0], p[1]) {
			t.Fatalf("expected %s -> %s denied", p[0], p[1])
		}
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	if decide(StatusCancelled, StatusCancelled) != decisionNoop {
		t.Fatalf("cancel of cancelled should be a no-op")
	}
	if decide(StatusCompleted, StatusCompleted) != decisionNoop {
		t.Fatalf("complete of completed should be a no-op")
	}
	if decide(StatusPending, StatusCompleted) != decisionApply {
		t.Fatalf("pending -> completed should apply")
	}
	if decide(StatusCancelled, StatusCompleted) != decisionReject {
		t.Fatalf("cancelled -> completed should be rejected")
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusConfirmed, StatusCompleted} {
		if !s.Occupies() || !s.Editable() || s.Deletable() {
			t.Fatalf("unexpected predicates for %s", s)
		}
	}
	if StatusCancelled.Occupies() || StatusCancelled.Editable() || !StatusCancelled.Deletable() {
		t.Fatalf("unexpected predicates for cancelled")
	}
	if _, ok := ParseStatus("expired"); ok {
		t.Fatalf("unknown status parsed")
	}
	if s, ok := ParseStatus("confirmed"); !ok || s != StatusConfirmed {
		t.Fatalf("expected confirmed, got %q %v", s, ok)
	}
}
