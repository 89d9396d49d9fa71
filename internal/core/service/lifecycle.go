// Package service implements the core business logic.
package service

import (
	"context"
	"log"
	"time"

	"github.com/forteclube/forte-payments/internal/core/domain"
	"github.com/forteclube/forte-payments/internal/core/ports"
)

// finalDaysWindow is how many days before start an open event enters the
// final-days state.
const finalDaysWindow = 7

// Reconcile computes the lifecycle status an event should have at the given
// instant. Pure and idempotent: applying it twice with the same now yields
// the same status. It never produces cancelled; that state is an explicit
// admin action.
//
// Precedence: completed > active > final_days > unchanged.
func Reconcile(event *domain.Event, now time.Time) domain.EventStatus {
	status := event.Status

	if now.After(event.EndDate) {
		if status != domain.EventStatusCompleted && status != domain.EventStatusCancelled {
			return domain.EventStatusCompleted
		}
		return status
	}

	if !now.Before(event.StartDate) && !now.After(event.EndDate) {
		if status != domain.EventStatusActive && status != domain.EventStatusCancelled {
			return domain.EventStatusActive
		}
		return status
	}

	if status == domain.EventStatusRegistrationOpen {
		days := daysUntil(now, event.StartDate)
		if days > 0 && days <= finalDaysWindow {
			return domain.EventStatusFinalDays
		}
	}

	return status
}

// daysUntil returns whole days between now and start.
func daysUntil(now, start time.Time) int {
	return int(start.Sub(now).Hours() / 24)
}

// LifecycleManager reconciles event statuses against the clock and persists
// transitions through a conditional write, so a concurrent administrative
// change (a manual cancelled) is never clobbered.
type LifecycleManager struct {
	events ports.EventRepository
	clock  func() time.Time
}

// NewLifecycleManager creates a lifecycle manager.
func NewLifecycleManager(events ports.EventRepository) *LifecycleManager {
	return &LifecycleManager{events: events, clock: time.Now}
}

// ReconcileAndPersist applies Reconcile to the event and, when the status
// differs, writes it with a status-guarded update. The returned event carries
// the effective status whether or not this call won the write.
func (m *LifecycleManager) ReconcileAndPersist(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	next := Reconcile(event, m.clock())
	if next == event.Status {
		return event, nil
	}

	changed, err := m.events.UpdateStatusIf(ctx, event.ID, event.Status, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to an admin override or another reconciler;
		// re-read so the caller sees the winning status.
		return m.events.GetByID(ctx, event.ID)
	}

	event.Status = next
	return event, nil
}

// ReconcileAll advances every non-terminal event. Used by the periodic
// sweeper so two readers never observe diverging statuses for long.
func (m *LifecycleManager) ReconcileAll(ctx context.Context) (int, error) {
	events, err := m.events.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}

	transitions := 0
	for i := range events {
		ev := events[i]
		next := Reconcile(&ev, m.clock())
		if next == ev.Status {
			continue
		}
		changed, err := m.events.UpdateStatusIf(ctx, ev.ID, ev.Status, next)
		if err != nil {
			log.Printf("lifecycle: failed to advance event %s to %s: %v", ev.ID, next, err)
			continue
		}
		if changed {
			transitions++
		}
	}
	return transitions, nil
}
