package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsBusinessDay(t *testing.T) {
	if !IsBusinessDay(date(2025, time.January, 3)) {
		t.Fatalf("Friday 2025-01-03 should be a business day")
	}
	if IsBusinessDay(date(2025, time.January, 4)) || IsBusinessDay(date(2025, time.January, 5)) {
		t.Fatalf("weekend should not be a business day")
	}
}

func TestAddBusinessDays(t *testing.T) {
	testCases := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{name: "friday plus one is monday", start: date(2025, time.January, 3), n: 1, want: date(2025, time.January, 6)},
		{name: "thursday plus two", start: date(2025, time.January, 2), n: 2, want: date(2025, time.January, 6)},
		{name: "thursday plus five", start: date(2025, time.January, 2), n: 5, want: date(2025, time.January, 9)},
		{name: "saturday plus one", start: date(2025, time.January, 4), n: 1, want: date(2025, time.January, 6)},
		{name: "zero keeps start", start: date(2025, time.January, 4), n: 0, want: date(2025, time.January, 4)},
		{name: "ten spans two weekends", start: date(2025, time.January, 6), n: 10, want: date(2025, time.January, 20)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := AddBusinessDays(testCase.start, testCase.n)
			if !got.Equal(testCase.want) {
				t.Fatalf("AddBusinessDays() = %s, want %s", got, testCase.want)
			}
		})
	}
}

func TestAddBusinessDaysKeepsClock(t *testing.T) {
	start := time.Date(2025, time.January, 3, 15, 30, 0, 0, time.UTC)
	got := AddBusinessDays(start, 1)
	want := time.Date(2025, time.January, 6, 15, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AddBusinessDays() = %s, want %s", got, want)
	}
}

func TestCountBusinessDays(t *testing.T) {
	testCases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{name: "same business day", start: date(2025, time.January, 2), end: date(2025, time.January, 2), want: 1},
		{name: "same weekend day", start: date(2025, time.January, 4), end: date(2025, time.January, 4), want: 0},
		{name: "full week", start: date(2025, time.January, 6), end: date(2025, time.January, 12), want: 5},
		{name: "thursday to next thursday", start: date(2025, time.January, 2), end: date(2025, time.January, 9), want: 6},
		{name: "end before start", start: date(2025, time.January, 9), end: date(2025, time.January, 2), want: 0},
		{name: "clock time ignored", start: time.Date(2025, time.January, 2, 23, 0, 0, 0, time.UTC), end: time.Date(2025, time.January, 3, 1, 0, 0, 0, time.UTC), want: 2},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := CountBusinessDays(testCase.start, testCase.end); got != testCase.want {
				t.Fatalf("CountBusinessDays() = %d, want %d", got, testCase.want)
			}
		})
	}
}
