package dataservice

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studentdash/internal/civil"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

//go:embed schema.sql
var schema string

// Postgres serves the data service operations straight from the backend database.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates missing tables. Existing tables are left as they are.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

const attendanceColumns = `id, student_id, internship_id, attendance_date, status, check_in, check_out, mode, location`

func scanAttendance(row interface{ Scan(...any) error }) (*model.AttendanceRecord, error) {
	var (
		rec               model.AttendanceRecord
		checkIn, checkOut sql.NullTime
		mode, location    sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.InternshipID, &rec.Date, &rec.Status, &checkIn, &checkOut, &mode, &location); err != nil {
		return nil, err
	}
	if checkIn.Valid {
		t := checkIn.Time.UTC()
		rec.CheckInAt = &t
	}
	if checkOut.Valid {
		t := checkOut.Time.UTC()
		rec.CheckOutAt = &t
	}
	rec.Mode = mode.String
	rec.Location = location.String
	return &rec, nil
}

// GetStudentProfile returns nil when the student row does not exist.
func (p *Postgres) GetStudentProfile(ctx context.Context, userID string) (out *model.StudentProfile, err error) {
	defer observe("get_student_profile", time.Now(), &out, &err)
	row := p.db.QueryRowContext(ctx, `
		SELECT uid, name, COALESCE(email, ''), dob, COALESCE(address, ''), COALESCE(admission_year, 0),
		       COALESCE(division, ''), COALESCE(roll_no, ''), COALESCE(admission_id, '')
		FROM students WHERE uid = $1
	`, userID)
	var sp model.StudentProfile
	if err := row.Scan(&sp.UID, &sp.Name, &sp.Email, &sp.DOB, &sp.Address, &sp.AdmissionYear, &sp.Division, &sp.RollNo, &sp.AdmissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sp, nil
}

// GetStudentInternships lists internships in start date order.
func (p *Postgres) GetStudentInternships(ctx context.Context, studentID string) (_ []model.Internship, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("get_student_internships", started, false, err) }()

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, student_id, COALESCE(company, ''), COALESCE(role, ''), start_date, end_date, mode, region
		FROM internships
		WHERE student_id = $1
		ORDER BY start_date, id
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []model.Internship{}
	for rows.Next() {
		var in model.Internship
		if err := rows.Scan(&in.ID, &in.StudentID, &in.Company, &in.Role, &in.StartDate, &in.EndDate, &in.Mode, &in.Region); err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

// GetInternshipAttendance returns the attendance row of the given day, or nil.
func (p *Postgres) GetInternshipAttendance(ctx context.Context, internshipID string, date civil.Date) (out *model.AttendanceRecord, err error) {
	defer observe("get_internship_attendance", time.Now(), &out, &err)
	row := p.db.QueryRowContext(ctx, `SELECT `+attendanceColumns+`
		FROM internship_attendance
		WHERE internship_id = $1 AND attendance_date = $2
	`, internshipID, date)
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetDailyReport returns the report filed for an attendance day, or nil.
func (p *Postgres) GetDailyReport(ctx context.Context, attendanceID string, date civil.Date) (out *model.DailyReport, err error) {
	defer observe("get_daily_report", time.Now(), &out, &err)
	row := p.db.QueryRowContext(ctx, `
		SELECT id, attendance_id, student_id, internship_id, report_date, content, COALESCE(attachment_url, ''), created_at
		FROM daily_reports
		WHERE attendance_id = $1 AND report_date = $2
	`, attendanceID, date)
	var rep model.DailyReport
	if err := row.Scan(&rep.ID, &rep.AttendanceID, &rep.StudentID, &rep.InternshipID, &rep.Date, &rep.Content, &rep.AttachmentURL, &rep.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rep, nil
}

// GetTotalWorkingDays counts weekdays in [start, end] that are not regional holidays.
func (p *Postgres) GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (n int, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("get_total_working_days", started, false, err) }()

	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM generate_series($1::date, $2::date, interval '1 day') AS d(day)
		WHERE EXTRACT(ISODOW FROM d.day) < 6
		  AND NOT EXISTS (
			SELECT 1 FROM holidays h WHERE h.region = $3 AND h.holiday_date = d.day::date
		  )
	`, start, end, region).Scan(&n)
	return n, err
}

// GetTotalPresentDays counts every present day recorded for the internship so far.
func (p *Postgres) GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (n int, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("get_total_present_days", started, false, err) }()

	err = p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM internship_attendance
		WHERE student_id = $1 AND internship_id = $2 AND status = $3
	`, studentID, internshipID, model.StatusPresent).Scan(&n)
	return n, err
}

// CheckHolidayForStudent treats weekends, regional holidays of the internship's region
// and leave days granted to the student for that internship as holidays.
func (p *Postgres) CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (ok bool, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("check_holiday_for_student", started, false, err) }()

	err = p.db.QueryRowContext(ctx, `
		SELECT EXTRACT(ISODOW FROM $3::date) >= 6
		    OR EXISTS (
			SELECT 1 FROM holidays h JOIN internships i ON i.region = h.region
			WHERE i.id = $2 AND h.holiday_date = $3::date
		    )
		    OR EXISTS (
			SELECT 1 FROM student_leaves l
			WHERE l.student_id = $1 AND l.internship_id = $2 AND l.leave_date = $3::date
		    )
	`, studentID, internshipID, date).Scan(&ok)
	return ok, err
}

// MarkCheckIn stamps the first check-in of the day; repeating it keeps the original time.
func (p *Postgres) MarkCheckIn(ctx context.Context, in CheckIn) (_ *model.AttendanceRecord, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("mark_check_in", started, false, err) }()

	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE internship_attendance
		SET check_in = COALESCE(check_in, $5),
		    mode = $6,
		    location = NULLIF($7, ''),
		    status = CASE WHEN status = $8 THEN status ELSE $9 END,
		    updated_at = NOW()
		WHERE id = $1 AND student_id = $2 AND internship_id = $3
		  AND ($4::date IS NULL OR attendance_date = $4::date)
		RETURNING `+attendanceColumns,
		in.AttendanceID, in.StudentID, in.InternshipID, in.Date, in.At, in.Mode, in.Location,
		model.StatusPresent, model.StatusPending)
	return p.mutated("check-in", row)
}

// MarkCheckOut stamps the check-out and marks the day present.
func (p *Postgres) MarkCheckOut(ctx context.Context, in CheckOut) (_ *model.AttendanceRecord, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("mark_check_out", started, false, err) }()

	if in.At.IsZero() {
		in.At = time.Now().UTC()
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE internship_attendance
		SET check_out = $5, status = $6, updated_at = NOW()
		WHERE id = $1 AND student_id = $2 AND internship_id = $3
		  AND ($4::date IS NULL OR attendance_date = $4::date)
		  AND check_in IS NOT NULL
		RETURNING `+attendanceColumns,
		in.AttendanceID, in.StudentID, in.InternshipID, in.Date, in.At, model.StatusPresent)
	return p.mutated("check-out", row)
}

func (p *Postgres) mutated(kind string, row *sql.Row) (*model.AttendanceRecord, error) {
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", kind, ErrNotFound)
	}
	return rec, err
}

// SubmitDailyReport inserts the report or replaces the content of an existing one.
func (p *Postgres) SubmitDailyReport(ctx context.Context, in ReportSubmission) (_ *model.DailyReport, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote("submit_daily_report", started, false, err) }()

	var exists bool
	if err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM internship_attendance WHERE id = $1 AND student_id = $2 AND internship_id = $3)
	`, in.AttendanceID, in.StudentID, in.InternshipID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("report: %w", ErrNotFound)
	}

	rep := model.DailyReport{
		ID:            uuid.NewString(),
		AttendanceID:  in.AttendanceID,
		StudentID:     in.StudentID,
		InternshipID:  in.InternshipID,
		Date:          in.Date,
		Content:       in.Content,
		AttachmentURL: in.AttachmentURL,
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO daily_reports (id, attendance_id, student_id, internship_id, report_date, content, attachment_url)
		VALUES ($1, $2, $3, $4, COALESCE($5::date, CURRENT_DATE), $6, NULLIF($7, ''))
		ON CONFLICT (attendance_id, report_date) DO UPDATE SET
			content = EXCLUDED.content,
			attachment_url = COALESCE(EXCLUDED.attachment_url, daily_reports.attachment_url),
			updated_at = NOW()
		RETURNING id, report_date, created_at
	`, rep.ID, rep.AttendanceID, rep.StudentID, rep.InternshipID, rep.Date, rep.Content, rep.AttachmentURL)
	if err := row.Scan(&rep.ID, &rep.Date, &rep.CreatedAt); err != nil {
		return nil, err
	}
	return &rep, nil
}

// observe records a single-record read; a nil result counts as absent.
func observe[T any](op string, started time.Time, out **T, err *error) {
	metrics.ObserveRemote(op, started, *out == nil, *err)
}
