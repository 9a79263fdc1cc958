// Package internship decides which of a student's internships is active on a given day.
package internship

import (
	"studentdash/internal/civil"
	"studentdash/internal/model"
)

// Active reports whether on falls within [StartDate, EndDate].
func Active(in model.Internship, on civil.Date) bool {
	return !on.Before(in.StartDate) && !on.After(in.EndDate)
}

// ResolveCurrent returns the first internship active on the given day.
// Overlapping internships resolve to whichever appears first.
func ResolveCurrent(internships []model.Internship, on civil.Date) (model.Internship, bool) {
	for _, in := range internships {
		if Active(in, on) {
			return in, true
		}
	}
	return model.Internship{}, false
}

// ResolveUpcoming returns the first internship that starts after the given day.
func ResolveUpcoming(internships []model.Internship, on civil.Date) (model.Internship, bool) {
	for _, in := range internships {
		if in.StartDate.After(on) {
			return in, true
		}
	}
	return model.Internship{}, false
}

// ShowUpcoming returns the internship for the one-time "upcoming" banner. The
// banner is only shown to students with exactly one internship on record.
func ShowUpcoming(internships []model.Internship, on civil.Date) (model.Internship, bool) {
	if len(internships) != 1 {
		return model.Internship{}, false
	}
	return ResolveUpcoming(internships, on)
}
