package internship

import (
	"testing"

	"studentdash/internal/civil"
	"studentdash/internal/model"
)

func span(id, start, end string) model.Internship {
	return model.Internship{ID: id, StartDate: civil.MustParse(start), EndDate: civil.MustParse(end)}
}

func TestResolveCurrent(t *testing.T) {
	spring := span("spring", "2024-01-01", "2024-06-30")
	summer := span("summer", "2024-06-01", "2024-08-31")
	autumn := span("autumn", "2024-09-01", "2024-12-31")

	tests := []struct {
		name   string
		list   []model.Internship
		on     string
		wantID string
	}{
		{"nil list", nil, "2024-03-15", ""},
		{"inside range", []model.Internship{spring, autumn}, "2024-03-15", "spring"},
		{"start day is inclusive", []model.Internship{autumn}, "2024-09-01", "autumn"},
		{"end day is inclusive", []model.Internship{spring}, "2024-06-30", "spring"},
		{"day after end", []model.Internship{spring}, "2024-07-01", ""},
		{"day before start", []model.Internship{autumn}, "2024-08-31", ""},
		{"overlap resolves first match", []model.Internship{summer, spring}, "2024-06-15", "summer"},
		{"overlap resolves first match reversed", []model.Internship{spring, summer}, "2024-06-15", "spring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveCurrent(tt.list, civil.MustParse(tt.on))
			if tt.wantID == "" {
				if ok {
					t.Fatalf("expected no current internship, got %s", got.ID)
				}
				return
			}
			if !ok || got.ID != tt.wantID {
				t.Fatalf("ResolveCurrent = %q (%v), want %q", got.ID, ok, tt.wantID)
			}
		})
	}
}

// Every returned internship must contain the day, and an absent result means none does.
func TestResolveCurrentMatchesContainment(t *testing.T) {
	list := []model.Internship{
		span("a", "2024-01-10", "2024-01-20"),
		span("b", "2024-01-15", "2024-02-10"),
		span("c", "2024-03-01", "2024-03-01"),
	}
	day := civil.MustParse("2024-01-01")
	for i := 0; i < 90; i++ {
		got, ok := ResolveCurrent(list, day)
		contained := false
		for _, in := range list {
			if !day.Before(in.StartDate) && !day.After(in.EndDate) {
				contained = true
				break
			}
		}
		if ok != contained {
			t.Fatalf("%s: ok=%v but containment=%v", day, ok, contained)
		}
		if ok && (day.Before(got.StartDate) || day.After(got.EndDate)) {
			t.Fatalf("%s: returned %s which does not contain the day", day, got.ID)
		}
		day = day.AddDays(1)
	}
}

func TestResolveUpcoming(t *testing.T) {
	list := []model.Internship{
		span("past", "2023-01-01", "2023-06-30"),
		span("next", "2024-09-01", "2024-12-31"),
		span("later", "2025-01-01", "2025-06-30"),
	}
	got, ok := ResolveUpcoming(list, civil.MustParse("2024-03-15"))
	if !ok || got.ID != "next" {
		t.Fatalf("ResolveUpcoming = %q (%v), want next", got.ID, ok)
	}
	if _, ok := ResolveUpcoming(list, civil.MustParse("2025-01-01")); ok {
		t.Fatal("an internship starting today is not upcoming")
	}
}

func TestShowUpcomingRequiresExactlyOneInternship(t *testing.T) {
	on := civil.MustParse("2024-03-15")
	future := span("future", "2024-09-01", "2024-12-31")

	if got, ok := ShowUpcoming([]model.Internship{future}, on); !ok || got.ID != "future" {
		t.Fatalf("single future internship should show banner, got %q (%v)", got.ID, ok)
	}
	two := []model.Internship{span("past", "2023-01-01", "2023-06-30"), future}
	if _, ok := ShowUpcoming(two, on); ok {
		t.Fatal("banner must not show when the student has more than one internship")
	}
	if _, ok := ShowUpcoming(nil, on); ok {
		t.Fatal("banner must not show without internships")
	}
}
