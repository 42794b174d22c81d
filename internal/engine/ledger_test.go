package engine

import (
	"context"
	"sync"
	"time"

	"academybooker/internal/model"
	"academybooker/internal/repo"
)

// fakeLedger is an in-memory repo.Repository. Its mutex plays the role of
// the event row lock: every admission and transition is atomic with respect
// to the occupancy count, which is the contract the engine relies on.
type fakeLedger struct {
	mu            sync.Mutex
	events        map[int64]*model.Event
	registrations map[int64]*model.Registration
	nextID        int64

	// admitErrs are popped one per AdmitTx call before the real logic runs;
	// used to simulate transient transaction conflicts.
	admitErrs []error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		events:        make(map[int64]*model.Event),
		registrations: make(map[int64]*model.Registration),
	}
}

func (f *fakeLedger) addEvent(e model.Event) *model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	f.events[e.ID] = &e
	return &e
}

func (f *fakeLedger) CreateEvent(_ context.Context, e *model.Event) (int64, error) {
	created := f.addEvent(*e)
	return created.ID, nil
}

func (f *fakeLedger) GetEventByID(_ context.Context, id int64) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) GetAllEvents(_ context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Event
	for _, e := range f.events {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeLedger) UpdateEventStatus(_ context.Context, id int64, status model.EventStatus) (*model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	e.Status = status
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

func (f *fakeLedger) occupancyLocked(eventID int64) int {
	count := 0
	for _, r := range f.registrations {
		if r.EventID == eventID && r.Status.ConsumesCapacity() {
			count++
		}
	}
	return count
}

func (f *fakeLedger) AdmitTx(_ context.Context, reg *model.Registration) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.admitErrs) > 0 {
		err := f.admitErrs[0]
		f.admitErrs = f.admitErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	event, ok := f.events[reg.EventID]
	if !ok {
		return nil, repo.ErrEventNotFound
	}
	for _, r := range f.registrations {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.Status.ConsumesCapacity() {
			return nil, repo.ErrDuplicateRegistration
		}
	}
	if event.MaxParticipants != nil && f.occupancyLocked(reg.EventID) >= *event.MaxParticipants {
		return nil, repo.ErrEventFull
	}

	f.nextID++
	created := *reg
	created.ID = f.nextID
	created.RegistrationDate = time.Now()
	created.CreatedAt = created.RegistrationDate
	created.UpdatedAt = created.RegistrationDate
	f.registrations[created.ID] = &created
	cp := created
	return &cp, nil
}

func (f *fakeLedger) TransitionTx(_ context.Context, registrationID int64, newStatus model.RegistrationStatus, notes string) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.registrations[registrationID]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	if !model.CanTransition(r.Status, newStatus) {
		return nil, repo.ErrInvalidTransition
	}
	if newStatus == model.RegistrationCompleted {
		event := f.events[r.EventID]
		if event != nil && time.Now().Before(event.EventDate) {
			return nil, repo.ErrEventNotYetFinished
		}
	}
	r.Status = newStatus
	if newStatus == model.RegistrationConfirmed {
		now := time.Now()
		r.ConfirmationDate = &now
	}
	if notes != "" {
		if r.Notes != "" {
			r.Notes += "\n"
		}
		r.Notes += notes
	}
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (f *fakeLedger) UpdatePaymentTx(_ context.Context, registrationID int64, newStatus model.PaymentStatus) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.registrations[registrationID]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	if !model.CanTransitionPayment(r.PaymentStatus, newStatus) {
		return nil, repo.ErrInvalidTransition
	}
	r.PaymentStatus = newStatus
	if newStatus == model.PaymentPaid {
		r.AmountPaid = r.AmountDue
	}
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (f *fakeLedger) GetRegistrationByID(_ context.Context, id int64) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.registrations[id]
	if !ok {
		return nil, repo.ErrRegistrationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeLedger) GetActiveRegistration(_ context.Context, eventID, userID int64) (*model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.registrations {
		if r.EventID == eventID && r.UserID == userID && r.Status.ConsumesCapacity() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrRegistrationNotFound
}

func (f *fakeLedger) GetRegistrationsByEventID(_ context.Context, eventID int64) ([]model.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Registration
	for _, r := range f.registrations {
		if r.EventID == eventID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeLedger) CountActiveRegistrations(_ context.Context, eventID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.occupancyLocked(eventID), nil
}

func (f *fakeLedger) MigrateUp(string) error   { return nil }
func (f *fakeLedger) MigrateDown(string) error { return nil }
