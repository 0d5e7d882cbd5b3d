// Package spacedrep schedules lesson reviews with a Leitner box system.
package spacedrep

import "time"

// MaxBox is the highest Leitner box. Box 1 is the weakest.
const MaxBox = 6

// boxIntervals[i] is the wait after landing in box i+1.
var boxIntervals = [MaxBox]time.Duration{
	15 * time.Minute,
	8 * time.Hour,
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
}

// Interval returns the review interval for a box. Boxes above MaxBox use the
// MaxBox interval; boxes below 1 use the box-1 interval.
func Interval(box int) time.Duration {
	switch {
	case box < 1:
		return boxIntervals[0]
	case box >= MaxBox:
		return boxIntervals[MaxBox-1]
	}
	return boxIntervals[box-1]
}

// NextBox moves a box after an answer: back to 1 on a miss, one up (capped at
// MaxBox) on a hit.
func NextBox(box int, correct bool) int {
	if !correct {
		return 1
	}
	if box < 1 {
		box = 1
	}
	return min(box+1, MaxBox)
}
