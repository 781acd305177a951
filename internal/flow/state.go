package flow

import (
	"fmt"
	"strings"
)

type View string

const (
	ViewRegistrationForm View = "registration-form"
	ViewDecision         View = "decision"
	ViewPaymentHandoff   View = "payment-handoff"
	ViewReminderForm     View = "reminder-form"
	ViewPaymentSuccess   View = "payment-success"
	ViewReminderSuccess  View = "reminder-success"
)

type Event string

const (
	EventFormCompleted    Event = "form-completed"
	EventContinue         Event = "continue"
	EventPayNow           Event = "pay-now"
	EventPaymentSucceeded Event = "payment-succeeded"
	EventPaymentClosed    Event = "payment-closed"
	EventRemindLater      Event = "remind-later"
	EventBack             Event = "back"
)

var transitions = map[View]map[Event]View{
	ViewRegistrationForm: {
		EventFormCompleted: ViewDecision,
		EventContinue:      ViewDecision,
	},
	ViewDecision: {
		EventPayNow:      ViewPaymentHandoff,
		EventRemindLater: ViewReminderForm,
	},
	ViewPaymentHandoff: {
		EventPaymentSucceeded: ViewPaymentSuccess,
		EventPaymentClosed:    ViewDecision,
	},
	ViewReminderForm: {
		EventBack: ViewDecision,
	},
}

// ParseEvent accepts the event name in any case, surrounded by whitespace.
func ParseEvent(name string) (Event, error) {
	event := Event(strings.ToLower(strings.TrimSpace(name)))
	switch event {
	case EventFormCompleted, EventContinue, EventPayNow, EventPaymentSucceeded,
		EventPaymentClosed, EventRemindLater, EventBack:
		return event, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

func next(from View, event Event) (View, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// Terminal reports whether no further events are accepted from v.
func (v View) Terminal() bool {
	return v == ViewPaymentSuccess || v == ViewReminderSuccess
}
