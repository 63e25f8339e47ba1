package deadline

import (
	"testing"
	"time"
)

var now = time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC)

func onDay(offset int) time.Time {
	return now.AddDate(0, 0, offset)
}

func TestDaysUntilCalendarTruncation(t *testing.T) {
	// Deadline later today is 0 days away even though fewer than 24h remain
	// would round up under exact arithmetic.
	sameDayEvening := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	if got := DaysUntil(sameDayEvening, now); got != 0 {
		t.Errorf("same-day deadline: got %d, want 0", got)
	}

	// Any time tomorrow is 1 day away, even 00:30 (under 24h from now).
	tomorrowMorning := time.Date(2024, 1, 11, 0, 30, 0, 0, time.UTC)
	if got := DaysUntil(tomorrowMorning, now); got != 1 {
		t.Errorf("tomorrow-morning deadline: got %d, want 1", got)
	}

	yesterday := time.Date(2024, 1, 9, 23, 59, 0, 0, time.UTC)
	if got := DaysUntil(yesterday, now); got != -1 {
		t.Errorf("yesterday deadline: got %d, want -1", got)
	}
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		days   int
		bucket Bucket
	}{
		{-3, BucketPassed},
		{-1, BucketPassed},
		{0, BucketToday},
		{1, BucketUrgent},
		{2, BucketUrgent},
		{3, BucketWarning},
		{5, BucketWarning},
		{6, BucketSoon},
		{7, BucketSoon},
		{8, BucketNormal},
		{10, BucketNormal},
		{30, BucketNormal},
	}
	for _, tt := range tests {
		if got := BucketFor(onDay(tt.days), now); got != tt.bucket {
			t.Errorf("BucketFor(+%d days) = %q, want %q", tt.days, got, tt.bucket)
		}
	}
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		days  int
		label string
	}{
		{-1, "Passed"},
		{0, "Today!"},
		{1, "Tomorrow"},
		{2, "2 days"},
		{5, "5 days"},
		{7, "7 days"},
		{8, ""},
		{10, ""},
	}
	for _, tt := range tests {
		if got := LabelFor(onDay(tt.days), now); got != tt.label {
			t.Errorf("LabelFor(+%d days) = %q, want %q", tt.days, got, tt.label)
		}
	}
}

// Days 6 and 7 are "soon" for styling but still labelled, and day 8 drops
// both. The cutoffs differ on purpose.
func TestBucketLabelAsymmetry(t *testing.T) {
	if BucketFor(onDay(6), now) != BucketSoon || LabelFor(onDay(6), now) != "6 days" {
		t.Error("day 6 should be soon bucket with a label")
	}
	if BucketFor(onDay(8), now) != BucketNormal || LabelFor(onDay(8), now) != "" {
		t.Error("day 8 should be normal bucket with no label")
	}
}

func TestClassifyNilDeadline(t *testing.T) {
	info := Classify(nil, now)
	if info.Bucket != BucketNone || info.Label != "" {
		t.Errorf("nil deadline should classify to zero Info, got %+v", info)
	}
}

func TestClassify(t *testing.T) {
	d := onDay(3)
	info := Classify(&d, now)
	if info.Bucket != BucketWarning {
		t.Errorf("bucket = %q, want %q", info.Bucket, BucketWarning)
	}
	if info.Label != "3 days" {
		t.Errorf("label = %q, want %q", info.Label, "3 days")
	}
	if info.DaysUntil != 3 {
		t.Errorf("daysUntil = %d, want 3", info.DaysUntil)
	}
}

func TestUpcoming(t *testing.T) {
	for _, b := range []Bucket{BucketToday, BucketUrgent, BucketWarning} {
		if !Upcoming(b) {
			t.Errorf("%q should count as upcoming", b)
		}
	}
	for _, b := range []Bucket{BucketNone, BucketPassed, BucketSoon, BucketNormal} {
		if Upcoming(b) {
			t.Errorf("%q should not count as upcoming", b)
		}
	}
}
