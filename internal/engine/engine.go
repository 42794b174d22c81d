// Package engine holds the admission, registration state machine and
// capacity projection logic. HTTP handlers and the expiry worker call into
// it; all ledger writes go through here or not at all.
package engine

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/retry"

	"academybooker/internal/repo"
)

var (
	// ErrEventUnavailable is returned when the event is missing or not
	// published.
	ErrEventUnavailable = errors.New("event is not open for registration")
	// ErrDeadlinePassed is returned when the registration deadline is over.
	ErrDeadlinePassed = errors.New("registration deadline has passed")
	// ErrTemporarilyUnavailable is returned after the bounded retry on
	// transient transaction conflicts is exhausted.
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable, please retry")

	// Ledger-level rejections surface under their repo identities so both
	// vocabularies satisfy errors.Is.
	ErrEventNotFound        = repo.ErrEventNotFound
	ErrRegistrationNotFound = repo.ErrRegistrationNotFound
	ErrEventFull            = repo.ErrEventFull
	ErrAlreadyRegistered    = repo.ErrDuplicateRegistration
	ErrInvalidTransition    = repo.ErrInvalidTransition
	ErrEventNotYetFinished  = repo.ErrEventNotYetFinished
)

// Engine coordinates every mutation of the registration ledger.
type Engine struct {
	repo     repo.Repository
	log      *zerolog.Logger
	now      func() time.Time
	strategy retry.Strategy
}

func NewEngine(r repo.Repository, log *zerolog.Logger) *Engine {
	return &Engine{
		repo: r,
		log:  log,
		now:  time.Now,
		strategy: retry.Strategy{
			Attempts: 3,
			Delay:    50 * time.Millisecond,
			Backoff:  2,
		},
	}
}

// withConflictRetry runs fn, retrying only transient transaction failures
// (serialization conflicts, deadlocks). Logical rejections pass through
// untouched: retrying EventFull would not change the outcome.
func (e *Engine) withConflictRetry(fn func() error) error {
	var rejection error
	err := retry.Do(func() error {
		if err := fn(); err != nil {
			if repo.IsRetryable(err) {
				return err
			}
			rejection = err
		}
		return nil
	}, e.strategy)
	if err != nil {
		e.log.Warn().Err(err).Msg("transaction conflict retries exhausted")
		return ErrTemporarilyUnavailable
	}
	return rejection
}
