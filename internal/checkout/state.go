package checkout

import pkgerrors "github.com/horologe/storefront-backend/pkg/errors"

// State is where a checkout attempt currently sits.
type State string

const (
	StateIdle                   State = "idle"
	StateAwaitingFullPayment    State = "awaiting_full_payment"
	StateAwaitingUpfrontPayment State = "awaiting_upfront_payment"
	StateUpfrontVerified        State = "upfront_verified"
	StateOrderPlaced            State = "order_placed"
	StateFailed                 State = "failed"
)

// Event moves an attempt between states.
type Event string

const (
	EventSubmitOnline     Event = "submit_online"
	EventSubmitCODUpfront Event = "submit_cod_upfront"
	EventSubmitCOD        Event = "submit_cod"
	EventPaymentConfirmed Event = "payment_confirmed"
	EventOrderCreated     Event = "order_created"
	EventDismissed        Event = "dismissed"
	EventFailed           Event = "failed"
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventSubmitOnline:     StateAwaitingFullPayment,
		EventSubmitCODUpfront: StateAwaitingUpfrontPayment,
		EventSubmitCOD:        StateOrderPlaced,
		EventFailed:           StateFailed,
	},
	StateAwaitingFullPayment: {
		EventPaymentConfirmed: StateOrderPlaced,
		EventDismissed:        StateIdle,
		EventFailed:           StateFailed,
	},
	StateAwaitingUpfrontPayment: {
		EventPaymentConfirmed: StateUpfrontVerified,
		EventDismissed:        StateIdle,
		EventFailed:           StateFailed,
	},
	StateUpfrontVerified: {
		EventOrderCreated: StateOrderPlaced,
		EventFailed:       StateFailed,
	},
}

// Transition looks up the next state. Pairs missing from the table are
// rejected; order_placed and failed accept nothing.
func Transition(from State, event Event) (State, error) {
	if next, ok := transitions[from][event]; ok {
		return next, nil
	}
	return from, pkgerrors.Newf(pkgerrors.CodeStateConflict, "checkout cannot handle %s while %s", event, from)
}

// IsAwaitingPayment reports whether the gateway dialog is expected to be open.
func (s State) IsAwaitingPayment() bool {
	return s == StateAwaitingFullPayment || s == StateAwaitingUpfrontPayment
}

// IsTerminal reports whether the attempt is finished.
func (s State) IsTerminal() bool {
	return s == StateOrderPlaced || s == StateFailed
}
