package practice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeStreak(t *testing.T) {
	today := day("2021-03-10")

	tests := []struct {
		name  string
		dates []time.Time
		want  int
	}{
		{name: "no entries", dates: nil, want: 0},
		{
			name:  "single entry today",
			dates: []time.Time{day("2021-03-10")},
			want:  1,
		},
		{
			name:  "single entry yesterday still counts",
			dates: []time.Time{day("2021-03-09")},
			want:  1,
		},
		{
			name:  "last practice two days ago breaks the streak",
			dates: []time.Time{day("2021-03-08"), day("2021-03-07"), day("2021-03-06")},
			want:  0,
		},
		{
			name:  "run ending today",
			dates: []time.Time{day("2021-03-10"), day("2021-03-09"), day("2021-03-08")},
			want:  3,
		},
		{
			name:  "run ending yesterday",
			dates: []time.Time{day("2021-03-09"), day("2021-03-08"), day("2021-03-07"), day("2021-03-06")},
			want:  4,
		},
		{
			name:  "gap in the middle stops the count",
			dates: []time.Time{day("2021-03-10"), day("2021-03-09"), day("2021-03-07"), day("2021-03-06")},
			want:  2,
		},
		{
			name: "duplicate days count once",
			dates: []time.Time{
				day("2021-03-10"), day("2021-03-10"), day("2021-03-10"),
				day("2021-03-09"),
			},
			want: 2,
		},
		{
			name:  "ordering does not matter",
			dates: []time.Time{day("2021-03-08"), day("2021-03-10"), day("2021-03-09")},
			want:  3,
		},
		{
			name: "multiple sessions in one day with time-of-day",
			dates: []time.Time{
				day("2021-03-10").Add(8 * time.Hour),
				day("2021-03-10").Add(20 * time.Hour),
				day("2021-03-09").Add(23 * time.Hour),
			},
			want: 2,
		},
		{
			name: "non-UTC zones normalize to UTC days",
			dates: []time.Time{
				// 2021-03-10 01:00 +0300 is 2021-03-09 22:00 UTC
				time.Date(2021, 3, 10, 1, 0, 0, 0, time.FixedZone("EAT", 3*3600)),
				day("2021-03-10"),
			},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStreak(tt.dates, today))
		})
	}
}

func TestComputeStreak_todayWithTimeOfDay(t *testing.T) {
	// "today" arrives as a full timestamp in production
	now := time.Date(2021, 3, 10, 18, 42, 13, 0, time.UTC)
	dates := []time.Time{day("2021-03-10"), day("2021-03-09")}
	assert.Equal(t, 2, ComputeStreak(dates, now))
}

func TestDateOf(t *testing.T) {
	// 23:30 -0600 is already the next day in UTC
	got := DateOf(time.Date(2021, 3, 9, 23, 30, 0, 0, time.FixedZone("CST", -6*3600)))
	assert.Equal(t, day("2021-03-10"), got)
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{name: "wednesday", t: day("2021-03-10"), want: day("2021-03-08")},
		{name: "monday", t: day("2021-03-08"), want: day("2021-03-08")},
		{name: "sunday belongs to previous monday", t: day("2021-03-14"), want: day("2021-03-08")},
		{name: "time-of-day is dropped", t: day("2021-03-10").Add(15 * time.Hour), want: day("2021-03-08")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartOfWeek(tt.t))
		})
	}
}
