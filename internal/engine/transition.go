package engine

import (
	"context"

	"academybooker/internal/model"
)

// Transition moves a registration to newStatus if the state graph allows
// it. Moving into confirmed stamps the confirmation date; moving into
// completed is rejected until the event date has passed; moving into
// cancelled frees the slot atomically, so the next admission decision
// observes the updated occupancy.
func (e *Engine) Transition(ctx context.Context, registrationID int64, newStatus model.RegistrationStatus, actor, notes string) (*model.Registration, error) {
	if !model.ValidRegistrationStatus(newStatus) {
		return nil, ErrInvalidTransition
	}

	var updated *model.Registration
	err := e.withConflictRetry(func() error {
		reg, txErr := e.repo.TransitionTx(ctx, registrationID, newStatus, notes)
		if txErr != nil {
			return txErr
		}
		updated = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("registration_id", registrationID).
		Str("status", string(newStatus)).
		Str("actor", actor).
		Msg("registration status changed")
	return updated, nil
}

// UpdatePayment moves a registration's payment status within the payment
// sub-graph. It never changes the registration status.
func (e *Engine) UpdatePayment(ctx context.Context, registrationID int64, newStatus model.PaymentStatus) (*model.Registration, error) {
	if !model.ValidPaymentStatus(newStatus) {
		return nil, ErrInvalidTransition
	}

	var updated *model.Registration
	err := e.withConflictRetry(func() error {
		reg, txErr := e.repo.UpdatePaymentTx(ctx, registrationID, newStatus)
		if txErr != nil {
			return txErr
		}
		updated = reg
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("registration_id", registrationID).
		Str("payment_status", string(newStatus)).
		Msg("payment status changed")
	return updated, nil
}
