package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to RegistrationStatus
		allowed  bool
	}{
		{RegistrationPending, RegistrationConfirmed, true},
		{RegistrationPending, RegistrationCancelled, true},
		{RegistrationPending, RegistrationCompleted, false},
		{RegistrationPending, RegistrationPending, false},
		{RegistrationConfirmed, RegistrationCancelled, true},
		{RegistrationConfirmed, RegistrationCompleted, true},
		{RegistrationConfirmed, RegistrationPending, false},
		{RegistrationCancelled, RegistrationPending, false},
		{RegistrationCancelled, RegistrationConfirmed, false},
		{RegistrationCompleted, RegistrationCancelled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentRefunded, true},
		{PaymentPending, PaymentFree, false},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentPending, false},
		{PaymentRefunded, PaymentPaid, false},
		{PaymentFree, PaymentPaid, false},
		{PaymentFree, PaymentPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransitionPayment(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestConsumesCapacity(t *testing.T) {
	assert.True(t, RegistrationPending.ConsumesCapacity())
	assert.True(t, RegistrationConfirmed.ConsumesCapacity())
	assert.False(t, RegistrationCancelled.ConsumesCapacity())
	assert.False(t, RegistrationCompleted.ConsumesCapacity())
}

func TestValidStatuses(t *testing.T) {
	assert.True(t, ValidRegistrationStatus(RegistrationPending))
	assert.False(t, ValidRegistrationStatus("archived"))
	assert.True(t, ValidPaymentStatus(PaymentFree))
	assert.False(t, ValidPaymentStatus("chargeback"))
	assert.True(t, ValidEventStatus(EventPublished))
	assert.False(t, ValidEventStatus("postponed"))
}

func TestEventOpen(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	published := Event{Status: EventPublished}
	assert.True(t, published.Open(now))

	withFutureDeadline := Event{Status: EventPublished, RegistrationDeadline: &future}
	assert.True(t, withFutureDeadline.Open(now))

	withPastDeadline := Event{Status: EventPublished, RegistrationDeadline: &past}
	assert.False(t, withPastDeadline.Open(now))

	draft := Event{Status: EventDraft}
	assert.False(t, draft.Open(now))
}

func TestEventFree(t *testing.T) {
	assert.True(t, (&Event{Price: 0}).Free())
	assert.False(t, (&Event{Price: 9.99}).Free())
}
