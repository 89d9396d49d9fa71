package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forteclube/forte-payments/internal/core/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestReconcile(t *testing.T) {
	// A three-day event in mid January.
	start := day("2025-01-10")
	end := day("2025-01-12")

	tests := []struct {
		name   string
		status domain.EventStatus
		now    time.Time
		want   domain.EventStatus
	}{
		{"open event a week out stays open", domain.EventStatusRegistrationOpen, day("2025-01-01"), domain.EventStatusRegistrationOpen},
		{"open event inside final week becomes final_days", domain.EventStatusRegistrationOpen, day("2025-01-05"), domain.EventStatusFinalDays},
		{"final_days stays final_days before start", domain.EventStatusFinalDays, day("2025-01-08"), domain.EventStatusFinalDays},
		{"running event becomes active", domain.EventStatusRegistrationOpen, day("2025-01-11"), domain.EventStatusActive},
		{"active on start day", domain.EventStatusFinalDays, day("2025-01-10"), domain.EventStatusActive},
		{"past event becomes completed", domain.EventStatusActive, day("2025-01-13"), domain.EventStatusCompleted},
		{"past event completes even from open", domain.EventStatusRegistrationOpen, day("2025-02-01"), domain.EventStatusCompleted},
		{"planning is never advanced to final_days", domain.EventStatusPlanning, day("2025-01-05"), domain.EventStatusPlanning},
		{"published is never advanced to final_days", domain.EventStatusPublished, day("2025-01-05"), domain.EventStatusPublished},
		{"cancelled is sticky during the event", domain.EventStatusCancelled, day("2025-01-11"), domain.EventStatusCancelled},
		{"cancelled is sticky after the event", domain.EventStatusCancelled, day("2025-01-13"), domain.EventStatusCancelled},
		{"completed stays completed", domain.EventStatusCompleted, day("2025-01-20"), domain.EventStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &domain.Event{ID: "ev-1", Status: tt.status, StartDate: start, EndDate: end}
			got := Reconcile(event, tt.now)
			assert.Equal(t, tt.want, got)

			// Idempotent: applying the result again at the same instant
			// changes nothing.
			event.Status = got
			assert.Equal(t, got, Reconcile(event, tt.now))
		})
	}
}

func TestReconcileAndPersistWritesTransition(t *testing.T) {
	events := newFakeEvents(&domain.Event{
		ID:        "ev-1",
		Status:    domain.EventStatusRegistrationOpen,
		StartDate: day("2025-01-10"),
		EndDate:   day("2025-01-12"),
	})
	m := NewLifecycleManager(events)
	m.clock = func() time.Time { return day("2025-01-05") }

	ev, err := events.GetByID(context.Background(), "ev-1")
	require.NoError(t, err)

	out, err := m.ReconcileAndPersist(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinalDays, out.Status)

	stored, err := events.GetByID(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusFinalDays, stored.Status)
}

func TestReconcileAndPersistLosesRaceToAdminCancel(t *testing.T) {
	events := newFakeEvents(&domain.Event{
		ID:        "ev-1",
		Status:    domain.EventStatusRegistrationOpen,
		StartDate: day("2025-01-10"),
		EndDate:   day("2025-01-12"),
	})
	m := NewLifecycleManager(events)
	m.clock = func() time.Time { return day("2025-01-05") }

	// Snapshot read, then an admin cancels before the reconciler writes.
	ev, err := events.GetByID(context.Background(), "ev-1")
	require.NoError(t, err)
	_, err = events.UpdateStatusIf(context.Background(), "ev-1",
		domain.EventStatusRegistrationOpen, domain.EventStatusCancelled)
	require.NoError(t, err)

	out, err := m.ReconcileAndPersist(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, domain.EventStatusCancelled, out.Status)
}

func TestReconcileAllAdvancesOnlyStaleEvents(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "past", Status: domain.EventStatusActive,
			StartDate: day("2025-01-01"), EndDate: day("2025-01-02")},
		&domain.Event{ID: "future", Status: domain.EventStatusRegistrationOpen,
			StartDate: day("2025-03-01"), EndDate: day("2025-03-02")},
	)
	m := NewLifecycleManager(events)
	m.clock = func() time.Time { return day("2025-01-15") }

	n, err := m.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	past, _ := events.GetByID(context.Background(), "past")
	assert.Equal(t, domain.EventStatusCompleted, past.Status)
	future, _ := events.GetByID(context.Background(), "future")
	assert.Equal(t, domain.EventStatusRegistrationOpen, future.Status)
}
