// Package fake provides a func-field implementation of dataservice.Service for tests.
// Nil funcs behave like an empty backend: no records, zero counts.
package fake

import (
	"context"

	"studentdash/internal/civil"
	"studentdash/internal/dataservice"
	"studentdash/internal/model"
)

type Service struct {
	Profile     func(ctx context.Context, userID string) (*model.StudentProfile, error)
	Internships func(ctx context.Context, studentID string) ([]model.Internship, error)
	Attendance  func(ctx context.Context, internshipID string, date civil.Date) (*model.AttendanceRecord, error)
	Report      func(ctx context.Context, attendanceID string, date civil.Date) (*model.DailyReport, error)
	WorkingDays func(ctx context.Context, start, end civil.Date, region string) (int, error)
	PresentDays func(ctx context.Context, studentID, internshipID string) (int, error)
	Holiday     func(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error)
	CheckIn     func(ctx context.Context, in dataservice.CheckIn) (*model.AttendanceRecord, error)
	CheckOut    func(ctx context.Context, in dataservice.CheckOut) (*model.AttendanceRecord, error)
	Submit      func(ctx context.Context, in dataservice.ReportSubmission) (*model.DailyReport, error)
}

var _ dataservice.Service = (*Service)(nil)

func (s *Service) GetStudentProfile(ctx context.Context, userID string) (*model.StudentProfile, error) {
	if s.Profile == nil {
		return nil, nil
	}
	return s.Profile(ctx, userID)
}

func (s *Service) GetStudentInternships(ctx context.Context, studentID string) ([]model.Internship, error) {
	if s.Internships == nil {
		return nil, nil
	}
	return s.Internships(ctx, studentID)
}

func (s *Service) GetInternshipAttendance(ctx context.Context, internshipID string, date civil.Date) (*model.AttendanceRecord, error) {
	if s.Attendance == nil {
		return nil, nil
	}
	return s.Attendance(ctx, internshipID, date)
}

func (s *Service) GetDailyReport(ctx context.Context, attendanceID string, date civil.Date) (*model.DailyReport, error) {
	if s.Report == nil {
		return nil, nil
	}
	return s.Report(ctx, attendanceID, date)
}

func (s *Service) GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (int, error) {
	if s.WorkingDays == nil {
		return 0, nil
	}
	return s.WorkingDays(ctx, start, end, region)
}

func (s *Service) GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (int, error) {
	if s.PresentDays == nil {
		return 0, nil
	}
	return s.PresentDays(ctx, studentID, internshipID)
}

func (s *Service) CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error) {
	if s.Holiday == nil {
		return false, nil
	}
	return s.Holiday(ctx, studentID, internshipID, date)
}

func (s *Service) MarkCheckIn(ctx context.Context, in dataservice.CheckIn) (*model.AttendanceRecord, error) {
	if s.CheckIn == nil {
		return nil, dataservice.ErrNotFound
	}
	return s.CheckIn(ctx, in)
}

func (s *Service) MarkCheckOut(ctx context.Context, in dataservice.CheckOut) (*model.AttendanceRecord, error) {
	if s.CheckOut == nil {
		return nil, dataservice.ErrNotFound
	}
	return s.CheckOut(ctx, in)
}

func (s *Service) SubmitDailyReport(ctx context.Context, in dataservice.ReportSubmission) (*model.DailyReport, error) {
	if s.Submit == nil {
		return nil, dataservice.ErrNotFound
	}
	return s.Submit(ctx, in)
}
