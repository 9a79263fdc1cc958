package dataservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studentdash/internal/civil"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "svc-token", 2*time.Second)
}

func TestClientGetStudentInternships(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/students/u1/internships" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer svc-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":"i1","start_date":"2024-01-01","end_date":"2024-06-30T00:00:00Z","mode":"remote","region":"MH"},
			{"id":"i2","start_date":"2024-09-01","end_date":"2024-12-31","mode":"in-person","region":"KA"}
		]`))
	})

	got, err := c.GetStudentInternships(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "i1" || got[1].ID != "i2" {
		t.Fatalf("unexpected internships: %+v", got)
	}
	if got[0].EndDate.String() != "2024-06-30" || got[0].Region != "MH" {
		t.Fatalf("unexpected decode of first internship: %+v", got[0])
	}
}

func TestClientAbsentRecordIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	ctx := context.Background()

	profile, err := c.GetStudentProfile(ctx, "u1")
	if err != nil || profile != nil {
		t.Fatalf("GetStudentProfile = %v, %v; want nil, nil", profile, err)
	}
	rec, err := c.GetInternshipAttendance(ctx, "i1", civil.MustParse("2024-03-15"))
	if err != nil || rec != nil {
		t.Fatalf("GetInternshipAttendance = %v, %v; want nil, nil", rec, err)
	}
	list, err := c.GetStudentInternships(ctx, "u1")
	if err != nil || len(list) != 0 {
		t.Fatalf("GetStudentInternships = %v, %v; want empty", list, err)
	}
}

func TestClientCounters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/calendar/working-days":
			q := r.URL.Query()
			if q.Get("start") != "2024-01-01" || q.Get("end") != "2024-03-15" || q.Get("region") != "MH" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"count":52}`))
		case "/students/u1/internships/i1/present-days":
			_, _ = w.Write([]byte(`{"count":40}`))
		case "/students/u1/internships/i1/holiday":
			if r.URL.Query().Get("date") != "2024-03-15" {
				t.Errorf("unexpected date %s", r.URL.Query().Get("date"))
			}
			_, _ = w.Write([]byte(`{"is_holiday":true}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()
	day := civil.MustParse("2024-03-15")

	wd, err := c.GetTotalWorkingDays(ctx, civil.MustParse("2024-01-01"), day, "MH")
	if err != nil || wd != 52 {
		t.Fatalf("GetTotalWorkingDays = %d, %v", wd, err)
	}
	pd, err := c.GetTotalPresentDays(ctx, "u1", "i1")
	if err != nil || pd != 40 {
		t.Fatalf("GetTotalPresentDays = %d, %v", pd, err)
	}
	hol, err := c.CheckHolidayForStudent(ctx, "u1", "i1", day)
	if err != nil || !hol {
		t.Fatalf("CheckHolidayForStudent = %v, %v", hol, err)
	}
}

func TestClientServerErrorIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	if _, err := c.GetTotalWorkingDays(context.Background(), civil.MustParse("2024-01-01"), civil.MustParse("2024-01-31"), "MH"); err == nil {
		t.Fatal("expected error from 500 response")
	}
}

func TestClientMarkCheckIn(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/attendance/a1/check-in" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body CheckIn
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.StudentID != "u1" || body.InternshipID != "i1" || body.Mode != "remote" || body.Date.String() != "2024-03-15" {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"id":"a1","status":"pending","check_in":"2024-03-15T04:00:00Z"}`))
	})
	rec, err := c.MarkCheckIn(context.Background(), CheckIn{
		Scope: Scope{AttendanceID: "a1", StudentID: "u1", InternshipID: "i1", Date: civil.MustParse("2024-03-15")},
		At:    time.Date(2024, 3, 15, 4, 0, 0, 0, time.UTC),
		Mode:  "remote",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !rec.CheckedIn() || rec.Status != "pending" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestClientMutationOnMissingRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.MarkCheckOut(context.Background(), CheckOut{Scope: Scope{AttendanceID: "gone", StudentID: "u1", InternshipID: "i1"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
