package attendance

import (
	"context"
	"errors"
	"testing"

	"studentdash/internal/civil"
	"studentdash/internal/dataservice/fake"
	"studentdash/internal/model"
)

func TestStatusFor(t *testing.T) {
	internships := []model.Internship{
		{ID: "i1", StartDate: civil.MustParse("2024-01-01"), EndDate: civil.MustParse("2024-06-30")},
	}
	holidays := map[string]bool{"2024-01-26": true}
	var asked []string
	hc := &fake.Service{
		Holiday: func(ctx context.Context, studentID, internshipID string, date civil.Date) (bool, error) {
			asked = append(asked, studentID+"/"+internshipID+"/"+date.String())
			return holidays[date.String()], nil
		},
	}

	t.Run("no internship covers the day", func(t *testing.T) {
		asked = nil
		st := StatusFor(context.Background(), hc, StatusRow{UID: "u1", Internships: internships}, civil.MustParse("2024-07-01"))
		if !st.NoInternship || st.IsHolidayForStudent != nil || st.Status != nil {
			t.Fatalf("unexpected status %+v", st)
		}
		if len(asked) != 0 {
			t.Fatalf("holiday must not be looked up, asked %v", asked)
		}
	})

	t.Run("holiday with no attendance", func(t *testing.T) {
		asked = nil
		st := StatusFor(context.Background(), hc, StatusRow{UID: "u1", Internships: internships}, civil.MustParse("2024-01-26"))
		if st.NoInternship || st.IsHolidayForStudent == nil || !*st.IsHolidayForStudent || st.Status != nil {
			t.Fatalf("unexpected status %+v", st)
		}
		if len(asked) != 1 || asked[0] != "u1/i1/2024-01-26" {
			t.Fatalf("unexpected lookups %v", asked)
		}
	})

	t.Run("first attendance record status", func(t *testing.T) {
		row := StatusRow{
			UID:         "u1",
			Internships: internships,
			Attendance:  []model.AttendanceRecord{{Status: model.StatusPresent}, {Status: model.StatusAbsent}},
		}
		st := StatusFor(context.Background(), hc, row, civil.MustParse("2024-03-15"))
		if st.Status == nil || *st.Status != model.StatusPresent {
			t.Fatalf("Status = %v, want present", st.Status)
		}
		if st.IsHolidayForStudent == nil || *st.IsHolidayForStudent {
			t.Fatalf("IsHolidayForStudent = %v, want false", st.IsHolidayForStudent)
		}
	})
}

func TestStatusForLookupFailure(t *testing.T) {
	hc := &fake.Service{
		Holiday: func(context.Context, string, string, civil.Date) (bool, error) { return true, errors.New("down") },
	}
	row := StatusRow{UID: "u1", Internships: []model.Internship{
		{ID: "i1", StartDate: civil.MustParse("2024-01-01"), EndDate: civil.MustParse("2024-06-30")},
	}}
	st := StatusFor(context.Background(), hc, row, civil.MustParse("2024-03-15"))
	if st.IsHolidayForStudent == nil || *st.IsHolidayForStudent {
		t.Fatalf("failed lookup should read as not a holiday, got %v", st.IsHolidayForStudent)
	}
}
