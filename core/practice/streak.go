package practice

import (
	"sort"
	"time"
)

// DateOf truncates t to its UTC calendar day. All streak arithmetic uses UTC
// day boundaries; mixing zones here produces off-by-one streaks around
// midnight.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ComputeStreak returns the number of consecutive UTC calendar days, ending
// today or yesterday, on which at least one practice session was logged.
// Input dates may carry time-of-day, duplicates and any ordering; only the set
// of distinct days matters. A last practice older than yesterday breaks the
// streak regardless of any earlier run.
func ComputeStreak(dates []time.Time, today time.Time) int {
	if len(dates) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := DateOf(d)
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	// recency gates the streak: no practice today or yesterday means 0
	if daysBetween(days[0], DateOf(today)) > 1 {
		return 0
	}

	streak := 1
	for i := 0; i < len(days)-1; i++ {
		if daysBetween(days[i+1], days[i]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// daysBetween returns the whole days from a to b; both must be UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
