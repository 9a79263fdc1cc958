package attendance

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"studentdash/internal/civil"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

// CounterSource is the part of the data service the calculator reads from.
type CounterSource interface {
	GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (int, error)
	GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (int, error)
	CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error)
}

// Counters are the attendance figures shown next to the check-in card.
type Counters struct {
	TotalWorkingDays int        `json:"total_working_days"`
	TotalPresentDays int        `json:"total_present_days"`
	IsHoliday        bool       `json:"is_holiday"`
	EffectiveEndDate civil.Date `json:"effective_end_date"`
}

// EffectiveEndDate caps the working-day window at the reference date so days that
// have not happened yet are never counted.
func EffectiveEndDate(in model.Internship, ref civil.Date) civil.Date {
	return civil.Min(ref, in.EndDate)
}

// Calculator computes Counters for an active internship.
type Calculator struct {
	src     CounterSource
	timeout time.Duration
}

// NewCalculator creates a calculator. A positive timeout bounds each computation.
func NewCalculator(src CounterSource, timeout time.Duration) *Calculator {
	return &Calculator{src: src, timeout: timeout}
}

// Compute issues the working-day, present-day and holiday reads concurrently and
// returns once all three have answered. A failed or empty read contributes its zero
// value. Working days cover [start, EffectiveEndDate]; present days are the running
// total for the whole internship. Only cancellation of ctx is reported as an error.
func (c *Calculator) Compute(ctx context.Context, in model.Internship, ref civil.Date, studentID string) (Counters, error) {
	rctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out := Counters{EffectiveEndDate: EffectiveEndDate(in, ref)}
	var g errgroup.Group

	g.Go(func() error {
		if out.EffectiveEndDate.Before(in.StartDate) {
			return nil
		}
		n, err := c.src.GetTotalWorkingDays(rctx, in.StartDate, out.EffectiveEndDate, in.Region)
		out.TotalWorkingDays = c.degrade(ctx, "working_days", in.ID, n, err)
		return nil
	})
	g.Go(func() error {
		n, err := c.src.GetTotalPresentDays(rctx, studentID, in.ID)
		out.TotalPresentDays = c.degrade(ctx, "present_days", in.ID, n, err)
		return nil
	})
	g.Go(func() error {
		ok, err := c.src.CheckHolidayForStudent(rctx, studentID, in.ID, ref)
		if err != nil {
			c.degrade(ctx, "holiday", in.ID, 0, err)
			ok = false
		}
		out.IsHoliday = ok
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Counters{}, err
	}
	return out, nil
}

func (c *Calculator) degrade(ctx context.Context, counter, internshipID string, n int, err error) int {
	if err == nil {
		if n < 0 {
			return 0
		}
		return n
	}
	if ctx.Err() == nil {
		metrics.DegradedReads.WithLabelValues(counter).Inc()
		log.Printf("%s for internship %s unavailable, using 0: %v", counter, internshipID, err)
	}
	return 0
}
