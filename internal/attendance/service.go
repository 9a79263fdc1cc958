package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"

	"studentdash/internal/civil"
	"studentdash/internal/dataservice"
	"studentdash/internal/internship"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
	"studentdash/internal/queue"
)

// Errors returned when a mutation is not available for the student today.
var (
	ErrNoActiveInternship = errors.New("no active internship today")
	ErrNoAttendanceRecord = errors.New("no attendance record for today")
	ErrHoliday            = errors.New("today is a holiday")
	ErrNotCheckedIn       = errors.New("check in before checking out")
	ErrAlreadyCheckedOut  = errors.New("already checked out today")
	ErrInvalidInput       = errors.New("invalid input")
)

// Publisher receives events after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, evt queue.Event) error
}

// Day is a student's attendance context for one calendar day.
type Day struct {
	StudentID  string
	Date       civil.Date
	Internship *model.Internship
	Attendance *model.AttendanceRecord
}

// Service issues check-in, check-out and report mutations against today's attendance record.
type Service struct {
	ds       dataservice.Service
	events   Publisher
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a service. events may be nil.
func NewService(ds dataservice.Service, events Publisher, loc *time.Location) *Service {
	if loc == nil {
		loc = civil.LoadZone("")
	}
	return &Service{
		ds:       ds,
		events:   events,
		validate: validator.New(),
		loc:      loc,
		now:      time.Now,
	}
}

// Today resolves the student's current internship and its attendance record for today.
// Both may be absent.
func (s *Service) Today(ctx context.Context, studentID string) (Day, error) {
	day := Day{StudentID: studentID, Date: civil.In(s.now(), s.loc)}
	internships, err := s.ds.GetStudentInternships(ctx, studentID)
	if err != nil {
		return day, fmt.Errorf("load internships: %w", err)
	}
	cur, ok := internship.ResolveCurrent(internships, day.Date)
	if !ok {
		return day, nil
	}
	day.Internship = &cur
	rec, err := s.ds.GetInternshipAttendance(ctx, cur.ID, day.Date)
	if err != nil {
		return day, fmt.Errorf("load attendance: %w", err)
	}
	day.Attendance = rec
	return day, nil
}

func (s *Service) scope(ctx context.Context, studentID string) (Day, dataservice.Scope, error) {
	day, err := s.Today(ctx, studentID)
	if err != nil {
		return day, dataservice.Scope{}, err
	}
	if day.Internship == nil {
		return day, dataservice.Scope{}, ErrNoActiveInternship
	}
	if day.Attendance == nil || day.Attendance.ID == "" {
		return day, dataservice.Scope{}, ErrNoAttendanceRecord
	}
	if s.holiday(ctx, day) {
		return day, dataservice.Scope{}, ErrHoliday
	}
	return day, dataservice.Scope{
		AttendanceID: day.Attendance.ID,
		StudentID:    studentID,
		InternshipID: day.Internship.ID,
		Date:         day.Date,
	}, nil
}

// holiday fails open: a failed lookup does not block attendance.
func (s *Service) holiday(ctx context.Context, day Day) bool {
	ok, err := s.ds.CheckHolidayForStudent(ctx, day.StudentID, day.Internship.ID, day.Date)
	if err != nil {
		log.Printf("holiday check for %s/%s failed: %v", day.StudentID, day.Internship.ID, err)
		return false
	}
	return ok
}

// CheckIn marks arrival for today. When mode is empty the internship's mode is used.
func (s *Service) CheckIn(ctx context.Context, studentID, mode, location string) (*model.AttendanceRecord, error) {
	day, scope, err := s.scope(ctx, studentID)
	if err != nil {
		return nil, s.failed("check_in", err)
	}
	if mode == "" {
		mode = day.Internship.Mode
	}
	in := dataservice.CheckIn{Scope: scope, At: s.now().UTC(), Mode: mode, Location: location}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.failed("check_in", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	rec, err := s.ds.MarkCheckIn(ctx, in)
	if err != nil {
		return nil, s.failed("check_in", err)
	}
	s.publish(ctx, queue.CheckedIn, scope)
	metrics.Mutations.WithLabelValues("check_in", "ok").Inc()
	return rec, nil
}

// CheckOut marks departure for today.
func (s *Service) CheckOut(ctx context.Context, studentID string) (*model.AttendanceRecord, error) {
	day, scope, err := s.scope(ctx, studentID)
	if err != nil {
		return nil, s.failed("check_out", err)
	}
	switch {
	case !day.Attendance.CheckedIn():
		return nil, s.failed("check_out", ErrNotCheckedIn)
	case day.Attendance.CheckedOut():
		return nil, s.failed("check_out", ErrAlreadyCheckedOut)
	}
	in := dataservice.CheckOut{Scope: scope, At: s.now().UTC()}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.failed("check_out", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	rec, err := s.ds.MarkCheckOut(ctx, in)
	if err != nil {
		return nil, s.failed("check_out", err)
	}
	s.publish(ctx, queue.CheckedOut, scope)
	metrics.Mutations.WithLabelValues("check_out", "ok").Inc()
	return rec, nil
}

// SubmitReport files today's report. Resubmitting replaces the content.
func (s *Service) SubmitReport(ctx context.Context, studentID, content, attachmentURL string) (*model.DailyReport, error) {
	_, scope, err := s.scope(ctx, studentID)
	if err != nil {
		return nil, s.failed("submit_report", err)
	}
	in := dataservice.ReportSubmission{Scope: scope, Content: content, AttachmentURL: attachmentURL}
	if err := s.validate.Struct(in); err != nil {
		return nil, s.failed("submit_report", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	rep, err := s.ds.SubmitDailyReport(ctx, in)
	if err != nil {
		return nil, s.failed("submit_report", err)
	}
	s.publish(ctx, queue.ReportSubmitted, scope)
	metrics.Mutations.WithLabelValues("submit_report", "ok").Inc()
	return rep, nil
}

func (s *Service) failed(kind string, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, ErrNoActiveInternship), errors.Is(err, ErrNoAttendanceRecord), errors.Is(err, ErrHoliday),
		errors.Is(err, ErrNotCheckedIn), errors.Is(err, ErrAlreadyCheckedOut):
		outcome = "unavailable"
	}
	metrics.Mutations.WithLabelValues(kind, outcome).Inc()
	return err
}

func (s *Service) publish(ctx context.Context, typ string, scope dataservice.Scope) {
	if s.events == nil {
		return
	}
	evt := queue.NewEvent(typ, scope.StudentID, scope.InternshipID, scope.AttendanceID, scope.Date)
	if err := s.events.Publish(ctx, evt); err != nil {
		log.Printf("queue publish %s failed: %v", typ, err)
	}
}
