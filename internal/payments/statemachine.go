package payments

import "github.com/angelmondragon/dukapay-backend/pkg/enums"

// Event is something that may move an attempt.
type Event string

const (
	EventCompleted Event = "completed"
	EventFailed    Event = "failed"
	// EventTimeout is the client polling window elapsing. It never moves state.
	EventTimeout Event = "timeout"
)

// Outcome describes what Transition decided.
type Outcome string

const (
	// OutcomeApplied means the attempt moves to the returned status.
	OutcomeApplied Outcome = "applied"
	// OutcomeNoop means the event repeats the current state or carries no state.
	OutcomeNoop Outcome = "noop"
	// OutcomeRejected means the event contradicts a terminal state.
	OutcomeRejected Outcome = "rejected"
)

// Transition is the attempt state machine:
//
//	initiated --completed--> completed
//	initiated --failed-----> failed
//
// completed and failed are terminal. Repeating the current terminal event is a
// no-op; the opposite terminal event is rejected.
func Transition(current enums.PaymentStatus, event Event) (enums.PaymentStatus, Outcome) {
	switch event {
	case EventCompleted:
		switch current {
		case enums.PaymentStatusInitiated:
			return enums.PaymentStatusCompleted, OutcomeApplied
		case enums.PaymentStatusCompleted:
			return current, OutcomeNoop
		default:
			return current, OutcomeRejected
		}
	case EventFailed:
		switch current {
		case enums.PaymentStatusInitiated:
			return enums.PaymentStatusFailed, OutcomeApplied
		case enums.PaymentStatusFailed:
			return current, OutcomeNoop
		default:
			return current, OutcomeRejected
		}
	default:
		return current, OutcomeNoop
	}
}

// EventForStatus maps a terminal status reported by a provider to an event.
func EventForStatus(status enums.PaymentStatus) (Event, bool) {
	switch status {
	case enums.PaymentStatusCompleted:
		return EventCompleted, true
	case enums.PaymentStatusFailed:
		return EventFailed, true
	default:
		return "", false
	}
}
