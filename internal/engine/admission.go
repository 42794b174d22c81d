package engine

import (
	"context"
	"errors"

	"academybooker/internal/model"
	"academybooker/internal/repo"
)

// RegistrationDetails carries the fields a registrant submits alongside the
// attempt. The engine stores them opaquely.
type RegistrationDetails struct {
	Email            string
	Notes            string
	EmergencyContact string
}

// AttemptRegistration decides a single registration attempt. Preconditions
// are checked in order and the first failure wins with no side effects:
// event published, deadline not passed, no active registration for the
// registrant, capacity remaining. Deadline and publication are checked
// outside the critical section; the duplicate and capacity checks are
// repeated inside AdmitTx under the event row lock.
func (e *Engine) AttemptRegistration(ctx context.Context, eventID, userID int64, details RegistrationDetails) (*model.Registration, error) {
	event, err := e.repo.GetEventByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, ErrEventUnavailable
		}
		return nil, err
	}
	now := e.now()
	if event.Status != model.EventPublished {
		return nil, ErrEventUnavailable
	}
	if event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline) {
		return nil, ErrDeadlinePassed
	}

	if _, err := e.repo.GetActiveRegistration(ctx, eventID, userID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, repo.ErrRegistrationNotFound) {
		return nil, err
	}

	candidate := &model.Registration{
		EventID:          eventID,
		UserID:           userID,
		Email:            details.Email,
		Notes:            details.Notes,
		EmergencyContact: details.EmergencyContact,
	}
	if event.Free() {
		candidate.Status = model.RegistrationConfirmed
		candidate.PaymentStatus = model.PaymentFree
		candidate.ConfirmationDate = &now
	} else {
		candidate.Status = model.RegistrationPending
		candidate.PaymentStatus = model.PaymentPending
		candidate.AmountDue = event.Price
	}

	var created *model.Registration
	err = e.withConflictRetry(func() error {
		reg, admitErr := e.repo.AdmitTx(ctx, candidate)
		if admitErr != nil {
			return admitErr
		}
		created = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("event_id", eventID).
		Int64("user_id", userID).
		Int64("registration_id", created.ID).
		Str("status", string(created.Status)).
		Msg("registration admitted")
	return created, nil
}
