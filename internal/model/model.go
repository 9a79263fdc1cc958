package model

import (
	"time"

	"studentdash/internal/civil"
)

// Attendance statuses reported by the data service.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusPending = "pending"
)

// Internship modes.
const (
	ModeInPerson = "in-person"
	ModeRemote   = "remote"
	ModeHybrid   = "hybrid"
)

// StudentProfile is the student's record as held by the data service.
type StudentProfile struct {
	UID           string     `json:"uid"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	DOB           civil.Date `json:"dob"`
	Address       string     `json:"address"`
	AdmissionYear int        `json:"admission_year"`
	Division      string     `json:"division"`
	RollNo        string     `json:"roll_no"`
	AdmissionID   string     `json:"admission_id"`
}

// Incomplete reports whether any field required before attendance can be tracked is missing.
func (p StudentProfile) Incomplete() bool {
	return p.DOB.IsZero() ||
		p.Address == "" ||
		p.AdmissionYear == 0 ||
		p.Division == "" ||
		p.RollNo == "" ||
		p.AdmissionID == ""
}

// Internship is a placement period for a student. Start and End are inclusive.
type Internship struct {
	ID        string     `json:"id"`
	StudentID string     `json:"student_id"`
	Company   string     `json:"company,omitempty"`
	Role      string     `json:"role,omitempty"`
	StartDate civil.Date `json:"start_date"`
	EndDate   civil.Date `json:"end_date"`
	Mode      string     `json:"mode"`
	Region    string     `json:"region"`
}

// AttendanceRecord is one day's attendance entry within an internship.
type AttendanceRecord struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	InternshipID string     `json:"internship_id"`
	Date         civil.Date `json:"date"`
	Status       string     `json:"status"`
	CheckInAt    *time.Time `json:"check_in,omitempty"`
	CheckOutAt   *time.Time `json:"check_out,omitempty"`
	Mode         string     `json:"mode,omitempty"`
	Location     string     `json:"location,omitempty"`
}

// CheckedIn reports whether a check-in was captured.
func (a *AttendanceRecord) CheckedIn() bool { return a != nil && a.CheckInAt != nil }

// CheckedOut reports whether a check-out was captured.
func (a *AttendanceRecord) CheckedOut() bool { return a != nil && a.CheckOutAt != nil }

// DailyReport is the student's free-form report for one attendance day.
type DailyReport struct {
	ID            string     `json:"id"`
	AttendanceID  string     `json:"attendance_id"`
	StudentID     string     `json:"student_id"`
	InternshipID  string     `json:"internship_id"`
	Date          civil.Date `json:"date"`
	Content       string     `json:"content"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
