// Package worker applies mutation events to the shared counter cache.
package worker

import (
	"context"
	"log"

	"studentdash/internal/civil"
	"studentdash/internal/queue"
)

// Invalidator drops cached counters.
type Invalidator interface {
	InvalidatePresentDays(ctx context.Context, studentID, internshipID string)
	InvalidateHoliday(ctx context.Context, studentID, internshipID string, date civil.Date)
}

// Worker consumes attendance events.
type Worker struct {
	inv Invalidator
}

func New(inv Invalidator) *Worker {
	return &Worker{inv: inv}
}

// Run handles events until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	events, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for evt := range events {
		w.Handle(ctx, evt)
	}
	return nil
}

// Handle applies one event. A check-in or check-out can move the present-day
// count; a check-in also proves the day was open, so a cached holiday flag for it
// is dropped.
func (w *Worker) Handle(ctx context.Context, evt queue.Event) {
	switch evt.Type {
	case queue.CheckedIn:
		w.inv.InvalidatePresentDays(ctx, evt.StudentID, evt.InternshipID)
		w.inv.InvalidateHoliday(ctx, evt.StudentID, evt.InternshipID, evt.Date)
	case queue.CheckedOut:
		w.inv.InvalidatePresentDays(ctx, evt.StudentID, evt.InternshipID)
	case queue.ReportSubmitted:
	default:
		log.Printf("worker: ignoring event %s of type %q", evt.ID, evt.Type)
		return
	}
	log.Printf("worker: %s for %s/%s on %s", evt.Type, evt.StudentID, evt.InternshipID, evt.Date)
}
