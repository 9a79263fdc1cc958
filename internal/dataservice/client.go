package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"studentdash/internal/civil"
	"studentdash/internal/metrics"
	"studentdash/internal/model"
)

// Client calls the internship backend's REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// GetStudentProfile returns nil when the student has no profile yet.
func (c *Client) GetStudentProfile(ctx context.Context, userID string) (*model.StudentProfile, error) {
	var out model.StudentProfile
	found, err := c.get(ctx, "get_student_profile", "/students/"+url.PathEscape(userID)+"/profile", nil, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// GetStudentInternships lists a student's internships in backend order.
func (c *Client) GetStudentInternships(ctx context.Context, studentID string) ([]model.Internship, error) {
	out := []model.Internship{}
	if _, err := c.get(ctx, "get_student_internships", "/students/"+url.PathEscape(studentID)+"/internships", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInternshipAttendance returns the attendance record of the given day, or nil.
func (c *Client) GetInternshipAttendance(ctx context.Context, internshipID string, date civil.Date) (*model.AttendanceRecord, error) {
	var out model.AttendanceRecord
	q := url.Values{"date": {date.String()}}
	found, err := c.get(ctx, "get_internship_attendance", "/internships/"+url.PathEscape(internshipID)+"/attendance", q, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// GetDailyReport returns the report filed against an attendance day, or nil.
func (c *Client) GetDailyReport(ctx context.Context, attendanceID string, date civil.Date) (*model.DailyReport, error) {
	var out model.DailyReport
	q := url.Values{"date": {date.String()}}
	found, err := c.get(ctx, "get_daily_report", "/attendance/"+url.PathEscape(attendanceID)+"/report", q, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// GetTotalWorkingDays counts working days in [start, end] for the region's calendar.
func (c *Client) GetTotalWorkingDays(ctx context.Context, start, end civil.Date, region string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	q := url.Values{"start": {start.String()}, "end": {end.String()}, "region": {region}}
	if _, err := c.get(ctx, "get_total_working_days", "/calendar/working-days", q, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// GetTotalPresentDays counts the student's present days within the internship.
func (c *Client) GetTotalPresentDays(ctx context.Context, studentID, internshipID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := "/students/" + url.PathEscape(studentID) + "/internships/" + url.PathEscape(internshipID) + "/present-days"
	if _, err := c.get(ctx, "get_total_present_days", path, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// CheckHolidayForStudent reports whether the day is non-working for this student and internship.
func (c *Client) CheckHolidayForStudent(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error) {
	var out struct {
		IsHoliday bool `json:"is_holiday"`
	}
	path := "/students/" + url.PathEscape(studentID) + "/internships/" + url.PathEscape(internshipID) + "/holiday"
	if _, err := c.get(ctx, "check_holiday_for_student", path, url.Values{"date": {date.String()}}, &out); err != nil {
		return false, err
	}
	return out.IsHoliday, nil
}

// MarkCheckIn records the check-in on an existing attendance day.
func (c *Client) MarkCheckIn(ctx context.Context, in CheckIn) (*model.AttendanceRecord, error) {
	var out model.AttendanceRecord
	if err := c.post(ctx, "mark_check_in", "/attendance/"+url.PathEscape(in.AttendanceID)+"/check-in", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkCheckOut records the check-out on an existing attendance day.
func (c *Client) MarkCheckOut(ctx context.Context, in CheckOut) (*model.AttendanceRecord, error) {
	var out model.AttendanceRecord
	if err := c.post(ctx, "mark_check_out", "/attendance/"+url.PathEscape(in.AttendanceID)+"/check-out", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitDailyReport files the report of an attendance day.
func (c *Client) SubmitDailyReport(ctx context.Context, in ReportSubmission) (*model.DailyReport, error) {
	var out model.DailyReport
	if err := c.post(ctx, "submit_daily_report", "/attendance/"+url.PathEscape(in.AttendanceID)+"/report", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the data service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("data service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("data service unhealthy: %s", resp.Status)
	}
	return nil
}

// get decodes the response into out. A 404 is reported as found=false with no error.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) (found bool, err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote(op, started, !found, err) }()

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("data service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("data service error %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return true, nil
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveRemote(op, started, false, err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("data service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("data service error %s: %s", resp.Status, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}
