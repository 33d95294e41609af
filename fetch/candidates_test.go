package fetch

import (
	"testing"
	"time"
)

var (
	sixHourly = Schedule{RunHours: []int{0, 6, 12, 18}, Latency: 6 * time.Hour, LookBack: 24 * time.Hour}
	twiceDay  = Schedule{RunHours: []int{0, 12}, Latency: 8 * time.Hour, LookBack: 24 * time.Hour}
	hourly    = Schedule{RunHours: everyHour(), Latency: time.Hour, LookBack: 4 * time.Hour}
)

func everyHour() []int {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	return hours
}

func TestCandidatesNAMEarlyMorning(t *testing.T) {
	now := time.Date(2024, 3, 10, 5, 17, 0, 0, time.UTC)
	got := Candidates(now, sixHourly, "NAM", "nam{date}/nam_{hour}z")

	want := []time.Time{
		time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	}

	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i, c := range got {
		if !c.Run.Equal(want[i]) {
			t.Errorf("candidate %d: run %v, want %v", i, c.Run, want[i])
		}
		if !c.PriorDay {
			t.Errorf("candidate %d: expected prior day", i)
		}
		if c.Model != "NAM" {
			t.Errorf("candidate %d: model %q", i, c.Model)
		}
	}

	if url := got[0].URL(nil); url != "nam20240309/nam_18z" {
		t.Errorf("url %q", url)
	}
}

func TestCandidatesRAPAcrossMidnight(t *testing.T) {
	now := time.Date(2024, 3, 10, 2, 40, 0, 0, time.UTC)
	got := Candidates(now, hourly, "RAP", "")

	want := []struct {
		hour     int
		priorDay bool
	}{{1, false}, {0, false}, {23, true}, {22, true}}

	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i, c := range got {
		if c.Hour() != want[i].hour || c.PriorDay != want[i].priorDay {
			t.Errorf("candidate %d: %s, want hour %d prior day %v", i, c, want[i].hour, want[i].priorDay)
		}
	}
}

func TestCandidatesNonLocalInput(t *testing.T) {
	loc := time.FixedZone("MST", -7*3600)
	now := time.Date(2024, 3, 9, 22, 17, 0, 0, loc) // 05:17Z on the 10th

	got := Candidates(now, sixHourly, "NAM", "")
	if len(got) != 4 || got[0].Run.Day() != 9 || got[0].Hour() != 18 || got[0].Run.Location() != time.UTC {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestCandidatesProperties(t *testing.T) {
	cases := []struct {
		name     string
		schedule Schedule
		maxLen   int
	}{
		{"six hourly", sixHourly, 4},
		{"twice daily", twiceDay, 2},
		{"hourly", hourly, 5},
	}

	start := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for m := 0; m < 48*60; m += 20 {
				now := start.Add(time.Duration(m) * time.Minute)

				first := Candidates(now, tc.schedule, "M", "")
				again := Candidates(now, tc.schedule, "M", "")

				if len(first) == 0 || len(first) > tc.maxLen {
					t.Fatalf("%v: %d candidates", now, len(first))
				}
				if len(first) != len(again) {
					t.Fatalf("%v: not deterministic", now)
				}

				for i, c := range first {
					if !c.Run.Equal(again[i].Run) {
						t.Fatalf("%v: not deterministic at %d", now, i)
					}
					if !tc.schedule.hasRun(c.Hour()) {
						t.Errorf("%v: hour %d not a run hour", now, c.Hour())
					}
					if c.Run.After(now.Add(-tc.schedule.Latency)) {
						t.Errorf("%v: run %v newer than latency allows", now, c.Run)
					}
					if i > 0 && !c.Run.Before(first[i-1].Run) {
						t.Errorf("%v: run %v not older than %v", now, c.Run, first[i-1].Run)
					}
					wantPrior := c.Run.Format("20060102") != now.Format("20060102")
					if c.PriorDay != wantPrior {
						t.Errorf("%v: prior day %v for %v", now, c.PriorDay, c.Run)
					}
				}
			}
		})
	}
}

func TestCandidatesEmptyLookBack(t *testing.T) {
	s := Schedule{RunHours: []int{0}, Latency: time.Hour, LookBack: 2 * time.Hour}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := Candidates(now, s, "M", ""); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}
