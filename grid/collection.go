package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Collection is the set of datasets a fetch returned. Multi-file products
// hold one dataset per forecast step.
type Collection []*Dataset

// Steps lists every forecast hour available, ascending.
func (c Collection) Steps() []int {
	seen := make(map[int]bool)
	var steps []int
	for _, ds := range c {
		for _, s := range ds.Steps {
			if !seen[s] {
				seen[s] = true
				steps = append(steps, s)
			}
		}
	}
	sort.Ints(steps)
	return steps
}

// Levels lists the vertical levels of the first dataset that has any.
func (c Collection) Levels() []float64 {
	for _, ds := range c {
		if len(ds.Levels) > 0 {
			return ds.Levels
		}
	}
	return nil
}

// Read reads a field from the first dataset that carries the variable at
// the forecast hour.
func (c Collection) Read(ctx context.Context, variable string, forecastHour int, level float64) (*Field, error) {
	var lastErr error
	for _, ds := range c {
		if !ds.HasVariable(variable) {
			continue
		}
		f, err := ds.Read(ctx, variable, forecastHour, level)
		if errors.Is(err, ErrNoStep) {
			lastErr = err
			continue
		}
		return f, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s: %w", variable, ErrNoVariable)
}
