// Package deadline classifies how close an application deadline is.
// Buckets drive UI styling and the upcoming-deadline counters; labels are the
// short strings shown on cards. The two are computed independently and cut off
// at different points: days 6-7 sit in the "soon" bucket and still get an
// "N days" label, anything past 7 is "normal" with no label.
package deadline

import (
	"fmt"
	"time"
)

type Bucket string

const (
	BucketNone    Bucket = ""
	BucketPassed  Bucket = "passed"
	BucketToday   Bucket = "today"
	BucketUrgent  Bucket = "urgent"
	BucketWarning Bucket = "warning"
	BucketSoon    Bucket = "soon"
	BucketNormal  Bucket = "normal"
)

// Info is the full classification for one deadline.
type Info struct {
	Bucket    Bucket
	Label     string
	DaysUntil int
}

// DaysUntil counts calendar days from now to the deadline: both instants are
// truncated to local midnight first, so a deadline later today is 0 and any
// time tomorrow is 1, regardless of time of day.
func DaysUntil(deadline, now time.Time) int {
	d := startOfDay(deadline)
	n := startOfDay(now)
	return int(d.Sub(n) / (24 * time.Hour))
}

// BucketFor maps a deadline to its urgency bucket.
func BucketFor(deadline, now time.Time) Bucket {
	days := DaysUntil(deadline, now)
	switch {
	case days < 0:
		return BucketPassed
	case days == 0:
		return BucketToday
	case days <= 2:
		return BucketUrgent
	case days <= 5:
		return BucketWarning
	case days <= 7:
		return BucketSoon
	default:
		return BucketNormal
	}
}

// LabelFor maps a deadline to its display label, or "" past 7 days.
func LabelFor(deadline, now time.Time) string {
	days := DaysUntil(deadline, now)
	switch {
	case days < 0:
		return "Passed"
	case days == 0:
		return "Today!"
	case days == 1:
		return "Tomorrow"
	case days <= 7:
		return fmt.Sprintf("%d days", days)
	default:
		return ""
	}
}

// Classify returns the combined classification. A nil deadline means the
// record tracks no deadline and classifies to the zero Info.
func Classify(deadline *time.Time, now time.Time) Info {
	if deadline == nil {
		return Info{}
	}
	return Info{
		Bucket:    BucketFor(*deadline, now),
		Label:     LabelFor(*deadline, now),
		DaysUntil: DaysUntil(*deadline, now),
	}
}

// Upcoming reports whether a bucket counts toward the "upcoming deadlines"
// indicator: today, urgent, or warning.
func Upcoming(b Bucket) bool {
	return b == BucketToday || b == BucketUrgent || b == BucketWarning
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
