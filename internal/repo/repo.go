package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"academybooker/internal/model"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrRegistrationNotFound  = errors.New("registration not found")
	ErrEventFull             = errors.New("event is full")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrEventNotYetFinished   = errors.New("event has not finished yet")
)

// IsRetryable reports whether err is a transient transaction failure worth
// retrying: serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type Repository interface {
	CreateEvent(ctx context.Context, e *model.Event) (int64, error)
	GetEventByID(ctx context.Context, id int64) (*model.Event, error)
	GetAllEvents(ctx context.Context) ([]model.Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status model.EventStatus) (*model.Event, error)

	AdmitTx(ctx context.Context, reg *model.Registration) (*model.Registration, error)
	TransitionTx(ctx context.Context, registrationID int64, newStatus model.RegistrationStatus, notes string) (*model.Registration, error)
	UpdatePaymentTx(ctx context.Context, registrationID int64, newStatus model.PaymentStatus) (*model.Registration, error)

	GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error)
	GetActiveRegistration(ctx context.Context, eventID, userID int64) (*model.Registration, error)
	GetRegistrationsByEventID(ctx context.Context, eventID int64) ([]model.Registration, error)
	CountActiveRegistrations(ctx context.Context, eventID int64) (int, error)

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	return r.applyMigrations(migrationsDir, "*.up.sql")
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return r.execMigrationFiles(files)
}

func (r *repository) applyMigrations(migrationsDir, pattern string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	return r.execMigrationFiles(files)
}

func (r *repository) execMigrationFiles(files []string) error {
	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
		r.log.Info().Str("file", filepath.Base(file)).Msg("migration applied")
	}
	return nil
}

const eventColumns = `id, title, description, event_date, registration_deadline, location,
	price, max_participants, status, payment_window_minutes, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.EventDate, &e.RegistrationDeadline,
		&e.Location, &e.Price, &e.MaxParticipants, &e.Status,
		&e.PaymentWindowMinutes, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) CreateEvent(ctx context.Context, e *model.Event) (int64, error) {
	query := `
		INSERT INTO events (title, description, event_date, registration_deadline, location,
		                    price, max_participants, status, payment_window_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	row := r.db.QueryRowContext(ctx, query,
		e.Title, e.Description, e.EventDate, e.RegistrationDeadline, e.Location,
		e.Price, e.MaxParticipants, e.Status, e.PaymentWindowMinutes,
	)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return id, nil
}

func (r *repository) GetEventByID(ctx context.Context, id int64) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

func (r *repository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *repository) UpdateEventStatus(ctx context.Context, id int64, status model.EventStatus) (*model.Event, error) {
	query := `
		UPDATE events
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, status, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to update event status: %w", err)
	}
	return e, nil
}

const registrationColumns = `id, event_id, user_id, status, payment_status, amount_due, amount_paid,
	registration_date, confirmation_date, notes, emergency_contact, email, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*model.Registration, error) {
	var reg model.Registration
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.PaymentStatus,
		&reg.AmountDue, &reg.AmountPaid, &reg.RegistrationDate, &reg.ConfirmationDate,
		&reg.Notes, &reg.EmergencyContact, &reg.Email, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// AdmitTx is the admission critical section. The event row lock serialises
// concurrent attempts for the same event, so the occupancy count each
// admitted attempt observes is never stale. The duplicate check is repeated
// here under the lock; the partial unique index on active registrations
// backs it up across engine instances.
func (r *repository) AdmitTx(ctx context.Context, reg *model.Registration) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var maxParticipants *int
	err = tx.QueryRowContext(ctx, `
		SELECT max_participants
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, reg.EventID).Scan(&maxParticipants)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event row: %w", err)
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND status IN ('pending', 'confirmed')
	`, reg.EventID, reg.UserID).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to check duplicate registration: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return nil, ErrDuplicateRegistration
	}

	var occupancy int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND status IN ('pending', 'confirmed')
	`, reg.EventID).Scan(&occupancy)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	if maxParticipants != nil && occupancy >= *maxParticipants {
		_ = tx.Rollback()
		return nil, ErrEventFull
	}

	created, err := scanRegistration(tx.QueryRowContext(ctx, `
		INSERT INTO registrations (event_id, user_id, status, payment_status, amount_due,
		                           registration_date, confirmation_date, notes, emergency_contact, email)
		VALUES ($1, $2, $3, $4, $5, NOW(), $6, $7, $8, $9)
		RETURNING `+registrationColumns,
		reg.EventID, reg.UserID, reg.Status, reg.PaymentStatus, reg.AmountDue,
		reg.ConfirmationDate, reg.Notes, reg.EmergencyContact, reg.Email,
	))
	if err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admission: %w", err)
	}
	return created, nil
}

// TransitionTx applies a registration status change atomically. The event
// row is locked first so a cancellation and a concurrent admission cannot
// interleave: once this commits, the next AdmitTx recount sees the freed
// slot.
func (r *repository) TransitionTx(ctx context.Context, registrationID int64, newStatus model.RegistrationStatus, notes string) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var current model.RegistrationStatus
	var eventID int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, event_id
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`, registrationID).Scan(&current, &eventID)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to lock registration row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, eventID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to lock event row: %w", err)
	}

	if !model.CanTransition(current, newStatus) {
		_ = tx.Rollback()
		return nil, ErrInvalidTransition
	}

	if newStatus == model.RegistrationCompleted {
		var finished bool
		err = tx.QueryRowContext(ctx, `
			SELECT event_date <= NOW() FROM events WHERE id = $1
		`, eventID).Scan(&finished)
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to check event date: %w", err)
		}
		if !finished {
			_ = tx.Rollback()
			return nil, ErrEventNotYetFinished
		}
	}

	updated, err := scanRegistration(tx.QueryRowContext(ctx, `
		UPDATE registrations
		SET status = $1,
		    confirmation_date = CASE WHEN $1 = 'confirmed' THEN NOW() ELSE confirmation_date END,
		    notes = CASE WHEN $2 <> '' THEN TRIM(notes || E'\n' || $2) ELSE notes END,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING `+registrationColumns,
		newStatus, notes, registrationID,
	))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update registration status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transition: %w", err)
	}
	return updated, nil
}

// UpdatePaymentTx applies a payment status change. It never touches the
// registration status.
func (r *repository) UpdatePaymentTx(ctx context.Context, registrationID int64, newStatus model.PaymentStatus) (*model.Registration, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var current model.PaymentStatus
	err = tx.QueryRowContext(ctx, `
		SELECT payment_status
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`, registrationID).Scan(&current)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to lock registration row: %w", err)
	}

	if !model.CanTransitionPayment(current, newStatus) {
		_ = tx.Rollback()
		return nil, ErrInvalidTransition
	}

	updated, err := scanRegistration(tx.QueryRowContext(ctx, `
		UPDATE registrations
		SET payment_status = $1,
		    amount_paid = CASE WHEN $1 = 'paid' THEN amount_due ELSE amount_paid END,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING `+registrationColumns,
		newStatus, registrationID,
	))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment update: %w", err)
	}
	return updated, nil
}

func (r *repository) GetRegistrationByID(ctx context.Context, id int64) (*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetActiveRegistration(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND status IN ('pending', 'confirmed')
	`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get active registration: %w", err)
	}
	return reg, nil
}

func (r *repository) GetRegistrationsByEventID(ctx context.Context, eventID int64) ([]model.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY registration_date ASC
	`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CountActiveRegistrations is the occupancy projection: always a fresh
// count, never cached.
func (r *repository) CountActiveRegistrations(ctx context.Context, eventID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND status IN ('pending', 'confirmed')
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}
