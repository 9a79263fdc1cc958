package attendance

import (
	"context"
	"log"

	"studentdash/internal/civil"
	"studentdash/internal/internship"
	"studentdash/internal/model"
)

// HolidayChecker answers whether a day is non-working for a student's internship.
type HolidayChecker interface {
	CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error)
}

// StatusRow is one student in an attendance listing. Attendance holds the records
// for the listed day, most relevant first.
type StatusRow struct {
	UID         string                   `json:"uid"`
	Internships []model.Internship       `json:"internships"`
	Attendance  []model.AttendanceRecord `json:"attendance"`
}

// Status is the attendance cell of a listing row.
type Status struct {
	Status              *string `json:"status"`
	NoInternship        bool    `json:"no_internship"`
	IsHolidayForStudent *bool   `json:"is_holiday_for_student"`
}

// StatusFor resolves the internship covering date and, when there is one, looks up
// whether date is a holiday for the student. IsHolidayForStudent stays nil when no
// internship covers the day; a failed lookup reads as not a holiday.
func StatusFor(ctx context.Context, hc HolidayChecker, row StatusRow, date civil.Date) Status {
	var st Status
	if len(row.Attendance) > 0 && row.Attendance[0].Status != "" {
		s := row.Attendance[0].Status
		st.Status = &s
	}

	cur, ok := internship.ResolveCurrent(row.Internships, date)
	if !ok {
		st.NoInternship = true
		return st
	}
	hol, err := hc.CheckHolidayForStudent(ctx, row.UID, cur.ID, date)
	if err != nil {
		log.Printf("holiday lookup for %s/%s on %s failed: %v", row.UID, cur.ID, date, err)
		hol = false
	}
	st.IsHolidayForStudent = &hol
	return st
}
