package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"studentdash/internal/civil"
	"studentdash/internal/dataservice"
	"studentdash/internal/internship"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

// ErrUpstream marks failures of reads the dashboard cannot render without.
var ErrUpstream = errors.New("data service unavailable")

// View is the student dashboard.
type View struct {
	Today               civil.Date              `json:"today"`
	GreetingName        string                  `json:"greeting_name"`
	Student             *model.StudentProfile   `json:"student"`
	ShowCompleteProfile bool                    `json:"show_complete_profile"`
	ShowAddInternship   bool                    `json:"show_add_internship"`
	Internships         []model.Internship      `json:"internships"`
	UpcomingInternship  *model.Internship       `json:"upcoming_internship"`
	CurrentInternship   *model.Internship       `json:"current_internship"`
	Attendance          *model.AttendanceRecord `json:"attendance"`
	Report              *model.DailyReport      `json:"report"`
	Counters            *Snapshot               `json:"counters"`
	CountersLoading     bool                    `json:"counters_loading"`
	IsHolidayToday      bool                    `json:"is_holiday_today"`
	CanCheckIn          bool                    `json:"can_check_in"`
	CanCheckOut         bool                    `json:"can_check_out"`
	CanSubmitReport     bool                    `json:"can_submit_report"`
}

// Builder assembles dashboard views and keeps the tracker fed with the
// current internship of each student.
type Builder struct {
	ds      dataservice.Service
	tracker *Tracker
	loc     *time.Location
	now     func() time.Time
}

// NewBuilder creates a builder reading from ds.
func NewBuilder(ds dataservice.Service, tracker *Tracker, loc *time.Location) *Builder {
	if loc == nil {
		loc = civil.LoadZone("")
	}
	return &Builder{ds: ds, tracker: tracker, loc: loc, now: time.Now}
}

// Today is the current civil date in the builder's zone.
func (b *Builder) Today() civil.Date {
	return civil.In(b.now(), b.loc)
}

// Build renders the dashboard of a student. Profile and internships are required;
// every other read degrades to an empty section.
func (b *Builder) Build(ctx context.Context, studentID string) (View, error) {
	view := View{Today: b.Today()}

	var (
		profile     *model.StudentProfile
		internships []model.Internship
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := b.ds.GetStudentProfile(gctx, studentID)
		if err != nil {
			return fmt.Errorf("%w: profile: %v", ErrUpstream, err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		list, err := b.ds.GetStudentInternships(gctx, studentID)
		if err != nil {
			return fmt.Errorf("%w: internships: %v", ErrUpstream, err)
		}
		internships = list
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.DashboardBuilds.WithLabelValues("error").Inc()
		return View{}, err
	}

	if profile == nil {
		view.ShowCompleteProfile = true
		metrics.DashboardBuilds.WithLabelValues("no_profile").Inc()
		return view, nil
	}
	view.Student = profile
	view.GreetingName = profile.Name
	view.ShowCompleteProfile = profile.Incomplete()
	view.Internships = internships
	view.ShowAddInternship = len(internships) == 0
	if up, ok := internship.ShowUpcoming(internships, view.Today); ok {
		view.UpcomingInternship = &up
	}

	cur, ok := internship.ResolveCurrent(internships, view.Today)
	if !ok {
		b.tracker.Forget(studentID)
		metrics.DashboardBuilds.WithLabelValues("ok").Inc()
		return view, nil
	}
	view.CurrentInternship = &cur

	var wg errgroup.Group
	wg.Go(func() error {
		view.Attendance, view.Report = b.today(ctx, cur, view.Today)
		return nil
	})
	wg.Go(func() error {
		view.Counters, view.CountersLoading = b.counters(ctx, Trigger{
			StudentID:     studentID,
			Internship:    cur,
			ReferenceDate: view.Today,
		})
		return nil
	})
	_ = wg.Wait()
	if err := ctx.Err(); err != nil {
		return View{}, err
	}

	// a fallback snapshot may belong to another internship or day
	if c := view.Counters; c != nil && c.ReferenceDate == view.Today && c.InternshipID == cur.ID {
		view.IsHolidayToday = view.Counters.IsHoliday
	}
	if att := view.Attendance; att != nil && att.ID != "" && !view.IsHolidayToday {
		view.CanCheckIn = !att.CheckedIn()
		view.CanCheckOut = att.CheckedIn() && !att.CheckedOut()
		view.CanSubmitReport = true
	}
	metrics.DashboardBuilds.WithLabelValues("ok").Inc()
	return view, nil
}

func (b *Builder) today(ctx context.Context, cur model.Internship, date civil.Date) (*model.AttendanceRecord, *model.DailyReport) {
	att, err := b.ds.GetInternshipAttendance(ctx, cur.ID, date)
	if err != nil {
		log.Printf("dashboard: attendance for internship %s on %s: %v", cur.ID, date, err)
		return nil, nil
	}
	if att == nil || att.ID == "" {
		return att, nil
	}
	rep, err := b.ds.GetDailyReport(ctx, att.ID, date)
	if err != nil {
		log.Printf("dashboard: report for attendance %s: %v", att.ID, err)
		return att, nil
	}
	return att, rep
}

// counters waits for the snapshot of trig. When the wait is cut short, the last
// complete snapshot is shown with the loading flag set.
func (b *Builder) counters(ctx context.Context, trig Trigger) (*Snapshot, bool) {
	snap, err := b.tracker.Refresh(ctx, trig)
	if err == nil {
		return &snap, false
	}
	if !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
		log.Printf("dashboard: counters for %s: %v", trig.StudentID, err)
	}
	latest, loading, ok := b.tracker.Latest(trig.StudentID)
	if !ok {
		return nil, loading
	}
	return &latest, loading
}

// Counters returns the tracked snapshot of a student without starting a computation.
func (b *Builder) Counters(studentID string) (*Snapshot, bool) {
	snap, loading, ok := b.tracker.Latest(studentID)
	if !ok {
		return nil, loading
	}
	return &snap, loading
}

// RefreshCounters re-resolves the student's current internship for today and
// recomputes the counters from scratch, superseding any computation in flight for the
// same inputs. Callers use it after mutations and at rollover. Students without a
// current internship stop being tracked.
func (b *Builder) RefreshCounters(ctx context.Context, studentID string) (*Snapshot, error) {
	today := b.Today()
	internships, err := b.ds.GetStudentInternships(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("%w: internships: %v", ErrUpstream, err)
	}
	cur, ok := internship.ResolveCurrent(internships, today)
	if !ok {
		b.tracker.Forget(studentID)
		return nil, nil
	}
	snap, err := b.tracker.Restart(ctx, Trigger{StudentID: studentID, Internship: cur, ReferenceDate: today})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
