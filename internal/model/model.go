package model

import "time"

// EventStatus is the lifecycle state of an event. Only published events
// accept new registrations.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventFinished  EventStatus = "finished"
)

// RegistrationStatus is the admission state of a registration.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
	RegistrationCompleted RegistrationStatus = "completed"
)

// PaymentStatus is tracked on its own axis and never drives the
// registration status.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFree     PaymentStatus = "free"
)

// statusTransitions is the registration state graph. cancelled and
// completed are terminal.
var statusTransitions = map[RegistrationStatus][]RegistrationStatus{
	RegistrationPending:   {RegistrationConfirmed, RegistrationCancelled},
	RegistrationConfirmed: {RegistrationCancelled, RegistrationCompleted},
	RegistrationCancelled: {},
	RegistrationCompleted: {},
}

// paymentTransitions is the payment sub-graph. free is terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentRefunded},
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: {},
	PaymentFree:     {},
}

// CanTransition reports whether from -> to is a legal registration status
// change.
func CanTransition(from, to RegistrationStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionPayment reports whether from -> to is a legal payment status
// change.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ConsumesCapacity reports whether a registration in this status holds a
// slot against the event ceiling.
func (s RegistrationStatus) ConsumesCapacity() bool {
	return s == RegistrationPending || s == RegistrationConfirmed
}

// ValidRegistrationStatus reports whether s is a known status.
func ValidRegistrationStatus(s RegistrationStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s PaymentStatus) bool {
	_, ok := paymentTransitions[s]
	return ok
}

// ValidEventStatus reports whether s is a known event status.
func ValidEventStatus(s EventStatus) bool {
	switch s {
	case EventDraft, EventPublished, EventCancelled, EventFinished:
		return true
	}
	return false
}

type Event struct {
	ID                   int64       `db:"id" json:"id"`
	Title                string      `db:"title" json:"title"`
	Description          string      `db:"description,omitempty" json:"description,omitempty"`
	EventDate            time.Time   `db:"event_date" json:"event_date"`
	RegistrationDeadline *time.Time  `db:"registration_deadline" json:"registration_deadline,omitempty"`
	Location             string      `db:"location,omitempty" json:"location,omitempty"`
	Price                float64     `db:"price" json:"price"`
	MaxParticipants      *int        `db:"max_participants" json:"max_participants,omitempty"`
	Status               EventStatus `db:"status" json:"status"`
	PaymentWindowMinutes int         `db:"payment_window_minutes" json:"payment_window_minutes"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
}

// Free reports whether the event requires no payment.
func (e *Event) Free() bool {
	return e.Price == 0
}

// Open reports whether the event accepts registrations at the given moment.
// Capacity is checked separately, inside the admission transaction.
func (e *Event) Open(now time.Time) bool {
	if e.Status != EventPublished {
		return false
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return false
	}
	return true
}

type Registration struct {
	ID               int64              `db:"id" json:"id"`
	EventID          int64              `db:"event_id" json:"event_id"`
	UserID           int64              `db:"user_id" json:"user_id"`
	Status           RegistrationStatus `db:"status" json:"status"`
	PaymentStatus    PaymentStatus      `db:"payment_status" json:"payment_status"`
	AmountDue        float64            `db:"amount_due" json:"amount_due"`
	AmountPaid       float64            `db:"amount_paid" json:"amount_paid"`
	RegistrationDate time.Time          `db:"registration_date" json:"registration_date"`
	ConfirmationDate *time.Time         `db:"confirmation_date" json:"confirmation_date,omitempty"`
	Notes            string             `db:"notes,omitempty" json:"notes,omitempty"`
	EmergencyContact string             `db:"emergency_contact,omitempty" json:"emergency_contact,omitempty"`
	Email            string             `db:"email,omitempty" json:"email,omitempty"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// Active reports whether the registration still holds a slot for its event.
func (r *Registration) Active() bool {
	return r.Status.ConsumesCapacity()
}
