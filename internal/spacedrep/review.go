package spacedrep

import (
	"time"

	"github.com/abhisek/lessonpath/internal/store"
)

// Apply moves rs to its next box for the given outcome and reschedules it
// relative to now.
func Apply(rs *store.ReviewState, correct bool, now time.Time) {
	rs.Box = NextBox(rs.Box, correct)
	rs.DueAt = now.Add(Interval(rs.Box))
	rs.UpdatedAt = &now
}

// IsDue returns true if the review is due (at or past the due date).
func IsDue(rs *store.ReviewState, now time.Time) bool {
	return !now.Before(rs.DueAt)
}

// ReviewStatus describes a review's status for display.
type ReviewStatus string

const (
	ReviewNotDue ReviewStatus = "not_due"
	ReviewDue    ReviewStatus = "due"
)

// Status returns the display status of a review.
func Status(rs *store.ReviewState, now time.Time) ReviewStatus {
	if IsDue(rs, now) {
		return ReviewDue
	}
	return ReviewNotDue
}
