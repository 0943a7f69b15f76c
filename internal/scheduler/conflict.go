// Package scheduler holds the interval rules shared by booking admission and storage.
package scheduler

import (
	"errors"
	"math"
	"sort"
	"time"
)

// MaxBookingDuration is the longest interval a single booking may cover.
const MaxBookingDuration = 2 * time.Hour

var (
	// ErrNonPositiveDuration is returned when an interval ends at or before its start.
	ErrNonPositiveDuration = errors.New("end time must be after start time")
	// ErrDurationExceeded is returned when an interval is longer than the permitted maximum.
	ErrDurationExceeded = errors.New("duration exceeds 2 hours")
)

// EarliestInstant and LatestInstant bound the instants a booking may use.
// Stores keep instants as int64 nanoseconds since the Unix epoch.
var (
	EarliestInstant = time.Unix(0, math.MinInt64).UTC()
	LatestInstant   = time.Unix(0, math.MaxInt64).UTC()
)

// InRange reports whether t lies within [EarliestInstant, LatestInstant].
func InRange(t time.Time) bool {
	return !t.Before(EarliestInstant) && !t.After(LatestInstant)
}

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start, which may be zero or negative.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that merely touch (one ends exactly when the other starts) do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// ValidateWindow checks that the interval is positive and no longer than limit.
// A zero limit uses MaxBookingDuration.
func ValidateWindow(i Interval, limit time.Duration) error {
	if limit <= 0 {
		limit = MaxBookingDuration
	}
	d := i.Duration()
	if d <= 0 {
		return ErrNonPositiveDuration
	}
	if d > limit {
		return ErrDurationExceeded
	}
	return nil
}

// Reservation is an interval already held on a room.
type Reservation struct {
	ID     string
	RoomID string
	Interval
}

// DetectConflicts returns the reservations on roomID that overlap the candidate,
// ordered by start time then ID.
func DetectConflicts(existing []Reservation, roomID string, candidate Interval) []Reservation {
	var conflicts []Reservation
	for _, r := range existing {
		if r.RoomID != roomID {
			continue
		}
		if r.Overlaps(candidate) {
			conflicts = append(conflicts, r)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Start.Equal(conflicts[j].Start) {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].Start.Before(conflicts[j].Start)
	})
	return conflicts
}
