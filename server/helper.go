package server

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"hstin/gridwx/grid"
	"hstin/gridwx/products"
)

// GetProductOptions resolves a comma separated product list. Unknown and
// repeated names are skipped.
func GetProductOptions(params string) ([]products.Product, error) {
	paramList := strings.FieldsFunc(params, func(c rune) bool { return c == ',' })
	if len(paramList) == 0 {
		return nil, errors.New("no valid products specified")
	}

	seenParams := make(map[string]struct{}, len(paramList))
	matched := make([]products.Product, 0, len(paramList))

	for _, param := range paramList {
		trimmed := strings.TrimSpace(param)
		if _, alreadySeen := seenParams[trimmed]; !alreadySeen && trimmed != "" {
			if p, err := products.Lookup(trimmed); err == nil {
				matched = append(matched, p)
				seenParams[trimmed] = struct{}{}
			}
		}
	}

	if len(matched) == 0 {
		return nil, errors.New("no valid products specified, available products are: " + strings.Join(products.Names(), ", "))
	}

	return matched, nil
}

// parseSteps reads a comma separated list of forecast hours.
func parseSteps(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return []int{0}, nil
	}
	var steps []int
	for _, part := range strings.Split(s, ",") {
		step, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || step < 0 {
			return nil, errors.New("invalid step " + strconv.Quote(part))
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// sampleProducts computes every product at every step and keeps the value
// nearest to lat/lon, one series per product. Values the data does not carry
// are nil; the first other failure is returned.
func sampleProducts(src grid.Collection, ps []products.Product, steps []int, lat, lon float64, compute computeFunc) (map[string][]*float64, error) {
	var wg sync.WaitGroup
	series := make(map[string][]*float64, len(ps))
	var firstErr error
	mu := sync.Mutex{}

	for _, p := range ps {
		wg.Add(1)
		go func(p products.Product) {
			defer wg.Done()
			values := make([]*float64, len(steps))
			for i, step := range steps {
				field, err := compute(p, src, step)
				if grid.IsMissing(err) {
					continue
				}
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				if v := field.Nearest(lat, lon); !math.IsNaN(v) {
					v = math.Round(v*100) / 100
					values[i] = &v
				}
			}

			mu.Lock()
			series[p.Name] = values
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return series, nil
}

type computeFunc func(p products.Product, src grid.Collection, step int) (*grid.Field, error)
