// Package dataservice is the dashboard's view of the internship backend: profiles,
// internships, attendance records, reports and the calendar counters derived from them.
package dataservice

import (
	"context"
	"errors"
	"time"

	"studentdash/internal/civil"
	"studentdash/internal/model"
)

// ErrNotFound is returned by mutations addressed to a record the backend does not hold.
// Reads report absence as a nil result instead.
var ErrNotFound = errors.New("record not found")

// Service is implemented by the remote REST client, the direct Postgres
// implementation and the Redis cache wrapping either of them.
type Service interface {
	GetStudentProfile(ctx context.Context, userID string) (*model.StudentProfile, error)
	GetStudentInternships(ctx context.Context, studentID string) ([]model.Internship, error)
	GetInternshipAttendance(ctx context.Context, internshipID string, date civil.Date) (*model.AttendanceRecord, error)
	GetDailyReport(ctx context.Context, attendanceID string, date civil.Date) (*model.DailyReport, error)

	GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (int, error)
	GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (int, error)
	CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error)

	MarkCheckIn(ctx context.Context, in CheckIn) (*model.AttendanceRecord, error)
	MarkCheckOut(ctx context.Context, in CheckOut) (*model.AttendanceRecord, error)
	SubmitDailyReport(ctx context.Context, in ReportSubmission) (*model.DailyReport, error)
}

// Scope addresses one attendance day of one student's internship.
type Scope struct {
	AttendanceID string     `json:"attendance_id" validate:"required"`
	StudentID    string     `json:"student_id" validate:"required"`
	InternshipID string     `json:"internship_id" validate:"required"`
	Date         civil.Date `json:"date"`
}

// CheckIn captures the arrival of a student.
type CheckIn struct {
	Scope
	At       time.Time `json:"at"`
	Mode     string    `json:"mode" validate:"required,oneof=in-person remote hybrid"`
	Location string    `json:"location" validate:"max=512"`
}

// CheckOut captures the departure of a student.
type CheckOut struct {
	Scope
	At time.Time `json:"at"`
}

// ReportSubmission creates or replaces the daily report of an attendance day.
type ReportSubmission struct {
	Scope
	Content       string `json:"content" validate:"required,max=10000"`
	AttachmentURL string `json:"attachment_url,omitempty" validate:"omitempty,url"`
}
