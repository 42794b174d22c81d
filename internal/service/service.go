package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"academybooker/internal/dto"
	"academybooker/internal/engine"
	"academybooker/internal/mailer"
	"academybooker/internal/model"
	"academybooker/internal/rabbit"
	"academybooker/internal/repo"
	"academybooker/pkg/validator"
)

type Service interface {
	CreateEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	GetEventInfo(ctx *ginext.Context)
	UpdateEventStatus(ctx *ginext.Context)
	GetAvailability(ctx *ginext.Context)
	Register(ctx *ginext.Context)
	Transition(ctx *ginext.Context)
	UpdatePayment(ctx *ginext.Context)
	GetRegistration(ctx *ginext.Context)
}

type service struct {
	engine *engine.Engine
	repo   repo.Repository
	log    *zerolog.Logger
	rbt    *rabbit.Client
	mail   *mailer.Mailer
}

func NewService(eng *engine.Engine, repository repo.Repository, logger *zerolog.Logger, rbt *rabbit.Client, mail *mailer.Mailer) Service {
	return &service{
		engine: eng,
		repo:   repository,
		log:    logger,
		rbt:    rbt,
		mail:   mail,
	}
}

func parseID(ctx *ginext.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(param), 10, 64)
	if err != nil || id <= 0 {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid "+param)
		return 0, false
	}
	return id, true
}

func (s *service) CreateEvent(ctx *ginext.Context) {
	var req dto.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}
	if req.RegistrationDeadline != nil && req.RegistrationDeadline.After(req.EventDate) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Registration deadline must not be after the event date")
		return
	}
	if req.Price > 0 && req.PaymentWindowMinutes == 0 {
		req.PaymentWindowMinutes = 60
	}

	event := &model.Event{
		Title:                req.Title,
		Description:          req.Description,
		EventDate:            req.EventDate,
		RegistrationDeadline: req.RegistrationDeadline,
		Location:             req.Location,
		Price:                req.Price,
		MaxParticipants:      req.MaxParticipants,
		Status:               model.EventDraft,
		PaymentWindowMinutes: req.PaymentWindowMinutes,
	}

	id, err := s.repo.CreateEvent(ctx.Request.Context(), event)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create event")
		dto.InternalServerError(ctx)
		return
	}

	created, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load created event")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", id).Msg("event created")
	dto.SuccessCreatedResponse(ctx, dto.NewEventResponse(created))
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list events")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.EventInfoResponse, 0, len(events))
	for i := range events {
		e := &events[i]
		occupancy, err := s.engine.Occupancy(ctx.Request.Context(), e.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("event_id", e.ID).Msg("failed to compute occupancy")
			continue
		}
		slots, err := s.engine.AvailableSlots(ctx.Request.Context(), e.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("event_id", e.ID).Msg("failed to compute availability")
			continue
		}
		resp = append(resp, dto.EventInfoResponse{
			EventResponse:    dto.NewEventResponse(e),
			RegistrationOpen: e.Open(time.Now()),
			Occupancy:        occupancy,
			AvailableSlots:   slots,
			Unlimited:        e.MaxParticipants == nil,
		})
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetEventInfo(ctx *ginext.Context) {
	eventID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	isAdmin := ctx.Query("admin") == "true"

	event, err := s.repo.GetEventByID(ctx.Request.Context(), eventID)
	if err != nil {
		dto.NotFoundError(ctx, dto.EventNotFound, "Event not found")
		return
	}
	occupancy, err := s.engine.Occupancy(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute occupancy")
		dto.InternalServerError(ctx)
		return
	}
	slots, err := s.engine.AvailableSlots(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute availability")
		dto.InternalServerError(ctx)
		return
	}

	resp := dto.EventInfoResponse{
		EventResponse:    dto.NewEventResponse(event),
		RegistrationOpen: event.Open(time.Now()),
		Occupancy:        occupancy,
		AvailableSlots:   slots,
		Unlimited:        event.MaxParticipants == nil,
	}

	if isAdmin {
		registrations, err := s.repo.GetRegistrationsByEventID(ctx.Request.Context(), eventID)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list registrations for admin view")
			dto.InternalServerError(ctx)
			return
		}
		for i := range registrations {
			resp.Registrations = append(resp.Registrations, dto.NewRegistrationResponse(&registrations[i]))
		}
	}

	dto.SuccessResponse(ctx, resp)
}

func (s *service) UpdateEventStatus(ctx *ginext.Context) {
	eventID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateEventStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}
	status := model.EventStatus(req.Status)
	if !model.ValidEventStatus(status) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Unknown event status")
		return
	}

	event, err := s.repo.UpdateEventStatus(ctx.Request.Context(), eventID, status)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			dto.NotFoundError(ctx, dto.EventNotFound, "Event not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to update event status")
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().Int64("event_id", eventID).Str("status", req.Status).Msg("event status updated")
	dto.SuccessResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) GetAvailability(ctx *ginext.Context) {
	eventID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	if _, err := s.repo.GetEventByID(ctx.Request.Context(), eventID); err != nil {
		dto.NotFoundError(ctx, dto.EventNotFound, "Event not found")
		return
	}
	occupancy, err := s.engine.Occupancy(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute occupancy")
		dto.InternalServerError(ctx)
		return
	}
	slots, err := s.engine.AvailableSlots(ctx.Request.Context(), eventID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to compute availability")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.AvailabilityResponse{
		EventID:        eventID,
		Occupancy:      occupancy,
		AvailableSlots: slots,
		Unlimited:      slots == nil,
	})
}

func (s *service) Register(ctx *ginext.Context) {
	eventID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	reg, err := s.engine.AttemptRegistration(ctx.Request.Context(), eventID, req.UserID, engine.RegistrationDetails{
		Email:            req.Email,
		Notes:            req.Notes,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrEventUnavailable):
			dto.NotFoundError(ctx, dto.EventUnavailable, "Event is not open for registration")
		case errors.Is(err, engine.ErrDeadlinePassed):
			dto.ConflictError(ctx, dto.DeadlinePassed, "Registration deadline has passed")
		case errors.Is(err, engine.ErrAlreadyRegistered):
			dto.ConflictError(ctx, dto.RegistrationDuplicate, "You already have an active registration for this event")
		case errors.Is(err, engine.ErrEventFull):
			dto.ConflictError(ctx, dto.EventFull, "Event is full")
		case errors.Is(err, engine.ErrTemporarilyUnavailable):
			dto.RetryLaterError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to register")
			dto.InternalServerError(ctx)
		}
		return
	}

	if reg.Status == model.RegistrationPending {
		s.schedulePaymentExpiry(ctx, reg)
	}
	s.notify(ctx.Request.Context(), reg, string(reg.Status))

	dto.SuccessCreatedResponse(ctx, dto.NewRegistrationResponse(reg))
}

// schedulePaymentExpiry publishes a delayed message so the worker cancels
// the registration if it is still unpaid when the payment window closes.
func (s *service) schedulePaymentExpiry(ctx *ginext.Context, reg *model.Registration) {
	event, err := s.repo.GetEventByID(ctx.Request.Context(), reg.EventID)
	if err != nil {
		s.log.Error().Err(err).Int64("event_id", reg.EventID).Msg("failed to load event for expiry scheduling")
		return
	}
	if event.PaymentWindowMinutes <= 0 {
		return
	}
	msg := dto.ExpiryMessage{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		ExpireAt:       time.Now().Add(time.Duration(event.PaymentWindowMinutes) * time.Minute),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal expiry message")
		return
	}
	if err := s.rbt.Publish(payload, event.PaymentWindowMinutes*60); err != nil {
		s.log.Error().Err(err).Int64("registration_id", reg.ID).Msg("failed to schedule payment expiry")
	}
}

func (s *service) notify(ctx context.Context, reg *model.Registration, kind string) {
	if s.mail == nil || reg.Email == "" {
		return
	}
	event, err := s.repo.GetEventByID(ctx, reg.EventID)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load event for notification")
		return
	}
	if err := s.mail.SendRegistrationEmail(event.Title, kind, reg.Email, event.PaymentWindowMinutes); err != nil {
		s.log.Warn().Err(err).Msg("failed to send notification email")
	}
}

func (s *service) Transition(ctx *ginext.Context) {
	regID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	reg, err := s.engine.Transition(ctx.Request.Context(), regID, model.RegistrationStatus(req.Status), req.Actor, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrRegistrationNotFound):
			dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
		case errors.Is(err, engine.ErrInvalidTransition):
			dto.ConflictError(ctx, dto.InvalidTransition, "Transition not allowed from the current status")
		case errors.Is(err, engine.ErrEventNotYetFinished):
			dto.ConflictError(ctx, dto.EventNotYetFinished, "Event has not finished yet")
		case errors.Is(err, engine.ErrTemporarilyUnavailable):
			dto.RetryLaterError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to transition registration")
			dto.InternalServerError(ctx)
		}
		return
	}

	s.notify(ctx.Request.Context(), reg, string(reg.Status))
	dto.SuccessResponse(ctx, dto.NewRegistrationResponse(reg))
}

func (s *service) UpdatePayment(ctx *ginext.Context) {
	regID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldBadFormat, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	reg, err := s.engine.UpdatePayment(ctx.Request.Context(), regID, model.PaymentStatus(req.PaymentStatus))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrRegistrationNotFound):
			dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
		case errors.Is(err, engine.ErrInvalidTransition):
			dto.ConflictError(ctx, dto.InvalidTransition, "Payment transition not allowed from the current status")
		case errors.Is(err, engine.ErrTemporarilyUnavailable):
			dto.RetryLaterError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to update payment status")
			dto.InternalServerError(ctx)
		}
		return
	}

	dto.SuccessResponse(ctx, dto.NewRegistrationResponse(reg))
}

func (s *service) GetRegistration(ctx *ginext.Context) {
	regID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	reg, err := s.repo.GetRegistrationByID(ctx.Request.Context(), regID)
	if err != nil {
		if errors.Is(err, repo.ErrRegistrationNotFound) {
			dto.NotFoundError(ctx, dto.RegistrationNotFound, "Registration not found")
			return
		}
		s.log.Error().Err(err).Msg("failed to get registration")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, dto.NewRegistrationResponse(reg))
}
