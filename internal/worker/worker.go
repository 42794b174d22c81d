package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wb-go/wbf/zlog"

	"academybooker/internal/dto"
	"academybooker/internal/engine"
	"academybooker/internal/mailer"
	"academybooker/internal/model"
	"academybooker/internal/rabbit"
	"academybooker/internal/repo"
)

// ExpiryWorker consumes delayed payment-window messages and cancels
// registrations that are still unpaid. Cancellation goes through the
// engine's transition path, so the freed slot is visible to the very next
// admission decision.
type ExpiryWorker struct {
	rmq    *rabbit.Client
	engine *engine.Engine
	repo   repo.Repository
	mail   *mailer.Mailer
	done   chan struct{}
	cancel context.CancelFunc
}

func NewExpiryWorker(rmq *rabbit.Client, eng *engine.Engine, repository repo.Repository, mail *mailer.Mailer) *ExpiryWorker {
	return &ExpiryWorker{
		rmq:    rmq,
		engine: eng,
		repo:   repository,
		mail:   mail,
		done:   make(chan struct{}),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	zlog.Logger.Info().Msg("payment expiry worker started")

	go func() {
		defer close(w.done)

		if err := w.rmq.Consume(func(body []byte) error {
			return w.handle(cctx, body)
		}); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming expiry messages")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("payment expiry worker stopped")
	}()
}

func (w *ExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

func (w *ExpiryWorker) handle(ctx context.Context, body []byte) error {
	var msg dto.ExpiryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to unmarshal expiry message")
		return err
	}

	reg, err := w.repo.GetRegistrationByID(ctx, msg.RegistrationID)
	if err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			return nil
		}
		zlog.Logger.Error().Err(err).
			Int64("registration_id", msg.RegistrationID).
			Msg("failed to load registration for expiry")
		return err
	}

	// Only unpaid pending registrations expire. Anything confirmed, already
	// cancelled, or paid in the meantime keeps its slot.
	if reg.Status != model.RegistrationPending || reg.PaymentStatus != model.PaymentPending {
		zlog.Logger.Info().
			Int64("registration_id", reg.ID).
			Str("status", string(reg.Status)).
			Str("payment_status", string(reg.PaymentStatus)).
			Msg("registration no longer expirable, skipping")
		return nil
	}

	cancelled, err := w.engine.Transition(ctx, reg.ID, model.RegistrationCancelled, "system", "payment window expired")
	if err != nil {
		// A concurrent confirm or cancel won the race; nothing to do.
		if errors.Is(err, engine.ErrInvalidTransition) {
			return nil
		}
		zlog.Logger.Error().Err(err).
			Int64("registration_id", reg.ID).
			Msg("failed to cancel expired registration")
		return err
	}

	zlog.Logger.Info().
		Int64("registration_id", cancelled.ID).
		Int64("event_id", cancelled.EventID).
		Msg("unpaid registration cancelled, slot released")

	if w.mail != nil && cancelled.Email != "" {
		event, err := w.repo.GetEventByID(ctx, cancelled.EventID)
		if err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to load event for expiry notification")
			return nil
		}
		if err := w.mail.SendRegistrationEmail(event.Title, string(model.RegistrationCancelled), cancelled.Email, 0); err != nil {
			zlog.Logger.Warn().Err(err).Msg("failed to send expiry notification")
		}
	}
	return nil
}
