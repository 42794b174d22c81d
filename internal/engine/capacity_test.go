package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academybooker/internal/model"
)

func TestOccupancyCountsOnlyCapacityConsumingStatuses(t *testing.T) {
	ledger := newFakeLedger()
	eng := newTestEngine(ledger)
	event := ledger.addEvent(publishedEvent(intPtr(10), 10))

	pending := admit(t, eng, event.ID, 1)
	confirmedReg := admit(t, eng, event.ID, 2)
	cancelledReg := admit(t, eng, event.ID, 3)

	_, err := eng.Transition(context.Background(), confirmedReg.ID, model.RegistrationConfirmed, "admin", "")
	require.NoError(t, err)
	_, err = eng.Transition(context.Background(), cancelledReg.ID, model.RegistrationCancelled, "user", "")
	require.NoError(t, err)

	occ, err := eng.Occupancy(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, occ, "pending %d and confirmed %d count, cancelled does not", pending.ID, confirmedReg.ID)
}

func TestAvailableSlots(t *testing.T) {
	ledger := newFakeLedger()
	eng := newTestEngine(ledger)
	event := ledger.addEvent(publishedEvent(intPtr(3), 0))

	slots, err := eng.AvailableSlots(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, slots)
	assert.Equal(t, 3, *slots)

	admit(t, eng, event.ID, 1)
	admit(t, eng, event.ID, 2)

	slots, err = eng.AvailableSlots(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, slots)
	assert.Equal(t, 1, *slots)
}

func TestAvailableSlotsUnlimited(t *testing.T) {
	ledger := newFakeLedger()
	eng := newTestEngine(ledger)
	event := ledger.addEvent(publishedEvent(nil, 0))

	admit(t, eng, event.ID, 1)

	slots, err := eng.AvailableSlots(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Nil(t, slots)
}

func TestAvailableSlotsClampedAfterCapacityReduction(t *testing.T) {
	ledger := newFakeLedger()
	eng := newTestEngine(ledger)
	event := ledger.addEvent(publishedEvent(intPtr(3), 0))

	for userID := int64(1); userID <= 3; userID++ {
		admit(t, eng, event.ID, userID)
	}

	// Admin lowers the ceiling below current occupancy: existing
	// registrations stay, availability reads zero, new admissions refused.
	ledger.mu.Lock()
	ledger.events[event.ID].MaxParticipants = intPtr(2)
	ledger.mu.Unlock()

	slots, err := eng.AvailableSlots(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, slots)
	assert.Zero(t, *slots)

	_, err = eng.AttemptRegistration(context.Background(), event.ID, 99, RegistrationDetails{})
	assert.ErrorIs(t, err, ErrEventFull)

	occ, err := eng.Occupancy(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, occ, "existing registrations are never retroactively cancelled")
}

func TestAvailableSlotsEventNotFound(t *testing.T) {
	ledger := newFakeLedger()
	eng := newTestEngine(ledger)

	_, err := eng.AvailableSlots(context.Background(), 123)
	assert.ErrorIs(t, err, ErrEventNotFound)
}
