package engine

import "context"

// Occupancy counts registrations currently holding a slot for the event.
// It is recomputed from the ledger on every call; caching it would let an
// admission decision act on a stale count.
func (e *Engine) Occupancy(ctx context.Context, eventID int64) (int, error) {
	return e.repo.CountActiveRegistrations(ctx, eventID)
}

// AvailableSlots returns the remaining capacity, nil for unlimited events.
// Clamped at zero: an administrator lowering max_participants below the
// current occupancy does not cancel existing registrations, it only stops
// new admissions.
func (e *Engine) AvailableSlots(ctx context.Context, eventID int64) (*int, error) {
	event, err := e.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.MaxParticipants == nil {
		return nil, nil
	}
	occupancy, err := e.repo.CountActiveRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	slots := *event.MaxParticipants - occupancy
	if slots < 0 {
		slots = 0
	}
	return &slots, nil
}
