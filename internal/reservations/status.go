package reservations

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {StatusCancelled: true},
	StatusCancelled: {},
}

func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := validNext[st]
	return st, ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Occupies reports whether a reservation in this status blocks its slot.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusCompleted
}

// Editable reports whether time, notes or cost may still change.
func (s Status) Editable() bool {
	return s.Occupies()
}

// Deletable reports whether the reservation may be purged.
func (s Status) Deletable() bool {
	return s == StatusCancelled
}

// transitionDecision is the outcome of asking the state machine for a move.
type transitionDecision int

const (
	decisionApply transitionDecision = iota
	decisionNoop
	decisionReject
)

// decide resolves a requested target status against the current one.
// Re-requesting the current status is a no-op so retries stay idempotent.
func decide(from, to Status) transitionDecision {
	if from == to {
		return decisionNoop
	}
	if CanTransition(from, to) {
		return decisionApply
	}
	return decisionReject
}
