package scheduler

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

var base = time.Date(2030, time.January, 1, 10, 0, 0, 0, time.UTC)

func window(startMin, endMin int) Interval {
	return Interval{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{name: "identical", a: window(0, 60), b: window(0, 60), want: true},
		{name: "partial overlap", a: window(0, 60), b: window(30, 90), want: true},
		{name: "containment", a: window(0, 120), b: window(30, 60), want: true},
		{name: "touching end to start", a: window(0, 60), b: window(60, 90), want: false},
		{name: "touching start to end", a: window(60, 90), b: window(0, 60), want: false},
		{name: "disjoint", a: window(0, 30), b: window(90, 120), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("b.Overlaps(a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	tests := []struct {
		name string
		in   Interval
		want error
	}{
		{name: "exactly two hours", in: window(0, 120), want: nil},
		{name: "one minute", in: window(0, 1), want: nil},
		{name: "just over two hours", in: Interval{Start: base, End: base.Add(2*time.Hour + time.Second)}, want: ErrDurationExceeded},
		{name: "zero length", in: window(0, 0), want: ErrNonPositiveDuration},
		{name: "reversed", in: window(60, 0), want: ErrNonPositiveDuration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWindow(tc.in, 0)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ValidateWindow() = %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("custom maximum", func(t *testing.T) {
		if err := ValidateWindow(window(0, 90), time.Hour); !errors.Is(err, ErrDurationExceeded) {
			t.Fatalf("expected ErrDurationExceeded, got %v", err)
		}
	})
}

func TestInRange(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want bool
	}{
		{name: "reference time", in: base, want: true},
		{name: "latest instant", in: LatestInstant, want: true},
		{name: "earliest instant", in: EarliestInstant, want: true},
		{name: "after latest", in: LatestInstant.Add(time.Nanosecond), want: false},
		{name: "before earliest", in: EarliestInstant.Add(-time.Nanosecond), want: false},
		{name: "year 2300", in: time.Date(2300, time.January, 1, 10, 0, 0, 0, time.UTC), want: false},
		{name: "offset zone near limit", in: time.Date(2262, time.April, 12, 1, 0, 0, 0, time.FixedZone("", 2*60*60)), want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InRange(tc.in); got != tc.want {
				t.Fatalf("InRange(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	existing := []Reservation{
		{ID: "b", RoomID: "r1", Interval: window(60, 120)},
		{ID: "a", RoomID: "r1", Interval: window(0, 60)},
		{ID: "c", RoomID: "r2", Interval: window(0, 120)},
	}

	t.Run("room overlap produces conflict", func(t *testing.T) {
		got := DetectConflicts(existing, "r1", window(30, 90))
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
			t.Fatalf("unexpected conflicts: %+v", got)
		}
	})

	t.Run("other rooms are ignored", func(t *testing.T) {
		got := DetectConflicts(existing, "r3", window(0, 120))
		if len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("non-overlapping window yields no conflicts", func(t *testing.T) {
		got := DetectConflicts(existing, "r1", window(120, 180))
		if len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})
}

func TestDetectConflictsAgreesWithPairwiseOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var accepted []Reservation

	for i := 0; i < 500; i++ {
		start := rng.Intn(24 * 60)
		length := 1 + rng.Intn(120)
		candidate := window(start, start+length)

		conflicts := DetectConflicts(accepted, "room", candidate)
		if len(conflicts) == 0 {
			accepted = append(accepted, Reservation{ID: string(rune('a' + i%26)), RoomID: "room", Interval: candidate})
		}
	}

	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			if accepted[i].Overlaps(accepted[j].Interval) {
				t.Fatalf("accepted reservations overlap: %+v and %+v", accepted[i], accepted[j])
			}
		}
	}
}
