package fetch

import (
	"fmt"
	"time"

	"hstin/gridwx/common"
)

// Schedule describes when a model publishes runs.
type Schedule struct {
	// RunHours are the UTC initialization hours of the model.
	RunHours []int
	// Latency is how long after initialization a run is expected online.
	Latency time.Duration
	// LookBack bounds how far behind the newest plausible run the search goes.
	LookBack time.Duration
}

func (s Schedule) hasRun(hour int) bool {
	for _, h := range s.RunHours {
		if h == hour {
			return true
		}
	}
	return false
}

// Candidate is one model run that may hold the requested data.
type Candidate struct {
	Model     string
	URLFormat string
	Run       time.Time
	PriorDay  bool
}

// Hour is the initialization hour of the run.
func (c Candidate) Hour() int {
	return c.Run.Hour()
}

// URL expands the provider template for this run. Extra values (step,
// variable, ...) are merged over the run placeholders.
func (c Candidate) URL(extra map[string]string) string {
	values := common.RunValues(c.Run)
	for k, v := range extra {
		values[k] = v
	}
	return common.ExpandURL(c.URLFormat, values)
}

func (c Candidate) String() string {
	label := common.RunLabel(c.Run)
	if c.PriorDay {
		label += " (prior day)"
	}
	return fmt.Sprintf("%s %s", c.Model, label)
}

// Candidates lists the runs of a model to try at now, newest first. The first
// entry is the newest run expected to be published given the latency; the list
// then steps back one run at a time until the look-back is used up.
func Candidates(now time.Time, s Schedule, model, urlFormat string) []Candidate {
	now = now.UTC()
	anchor := now.Add(-s.Latency).Truncate(time.Hour)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var candidates []Candidate

	for t := anchor; anchor.Sub(t) < s.LookBack; t = t.Add(-time.Hour) {
		if !s.hasRun(t.Hour()) {
			continue
		}
		candidates = append(candidates, Candidate{
			Model:     model,
			URLFormat: urlFormat,
			Run:       t,
			PriorDay:  t.Before(today),
		})
	}

	return candidates
}
