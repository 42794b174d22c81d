package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"academybooker/internal/model"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	EventNotFound         = "EVENT_NOT_FOUND"
	EventUnavailable      = "EVENT_UNAVAILABLE"
	EventFull             = "EVENT_FULL"
	DeadlinePassed        = "DEADLINE_PASSED"
	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	InvalidTransition     = "INVALID_TRANSITION"
	EventNotYetFinished   = "EVENT_NOT_FINISHED"
	RetrySuggested        = "TEMPORARILY_UNAVAILABLE"
)

type CreateEventRequest struct {
	Title                string     `json:"title" validate:"required,min=3,max=255"`
	Description          string     `json:"description"`
	EventDate            time.Time  `json:"event_date" validate:"required,future"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Location             string     `json:"location"`
	Price                float64    `json:"price" validate:"gte=0"`
	MaxParticipants      *int       `json:"max_participants,omitempty" validate:"omitempty,positive"`
	PaymentWindowMinutes int        `json:"payment_window_minutes" validate:"gte=0"`
}

type UpdateEventStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type RegisterRequest struct {
	UserID           int64  `json:"user_id" validate:"required,positive64"`
	Email            string `json:"email" validate:"required,email"`
	Notes            string `json:"notes" validate:"max=1000"`
	EmergencyContact string `json:"emergency_contact" validate:"max=255"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
	Actor  string `json:"actor" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

// ExpiryMessage is the delayed payload scheduled per paid admission; the
// worker cancels the registration if it is still unpaid when it arrives.
type ExpiryMessage struct {
	RegistrationID int64     `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	ExpireAt       time.Time `json:"expire_at"`
}

type RegistrationResponse struct {
	ID               int64      `json:"id"`
	EventID          int64      `json:"event_id"`
	UserID           int64      `json:"user_id"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	AmountDue        float64    `json:"amount_due"`
	AmountPaid       float64    `json:"amount_paid"`
	RegistrationDate time.Time  `json:"registration_date"`
	ConfirmationDate *time.Time `json:"confirmation_date,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

func NewRegistrationResponse(r *model.Registration) RegistrationResponse {
	return RegistrationResponse{
		ID:               r.ID,
		EventID:          r.EventID,
		UserID:           r.UserID,
		Status:           string(r.Status),
		PaymentStatus:    string(r.PaymentStatus),
		AmountDue:        r.AmountDue,
		AmountPaid:       r.AmountPaid,
		RegistrationDate: r.RegistrationDate,
		ConfirmationDate: r.ConfirmationDate,
		Notes:            r.Notes,
	}
}

type EventResponse struct {
	ID                   int64      `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	EventDate            time.Time  `json:"event_date"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Location             string     `json:"location,omitempty"`
	Price                float64    `json:"price"`
	MaxParticipants      *int       `json:"max_participants,omitempty"`
	Status               string     `json:"status"`
	PaymentWindowMinutes int        `json:"payment_window_minutes"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func NewEventResponse(e *model.Event) EventResponse {
	return EventResponse{
		ID:                   e.ID,
		Title:                e.Title,
		Description:          e.Description,
		EventDate:            e.EventDate,
		RegistrationDeadline: e.RegistrationDeadline,
		Location:             e.Location,
		Price:                e.Price,
		MaxParticipants:      e.MaxParticipants,
		Status:               string(e.Status),
		PaymentWindowMinutes: e.PaymentWindowMinutes,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
}

type EventInfoResponse struct {
	EventResponse
	RegistrationOpen bool                   `json:"registration_open"`
	Occupancy        int                    `json:"occupancy"`
	AvailableSlots   *int                   `json:"available_slots,omitempty"`
	Unlimited        bool                   `json:"unlimited"`
	Registrations    []RegistrationResponse `json:"registrations,omitempty"`
}

type AvailabilityResponse struct {
	EventID        int64 `json:"event_id"`
	Occupancy      int   `json:"occupancy"`
	AvailableSlots *int  `json:"available_slots,omitempty"`
	Unlimited      bool  `json:"unlimited"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
	})
}

func ConflictError(c *ginext.Context, code, desc string) {
	c.JSON(409, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error:  &Error{Code: code, Desc: desc},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error:  &Error{Code: ServiceUnavailable, Desc: InternalError},
	})
}

func RetryLaterError(c *ginext.Context) {
	c.JSON(503, Response{
		Status: "error",
		Error:  &Error{Code: RetrySuggested, Desc: "High contention, please retry"},
	})
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{Status: "ok", Data: data})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{Status: "ok", Data: data})
}
