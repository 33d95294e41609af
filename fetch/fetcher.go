package fetch

import (
	"context"
	"errors"
	"fmt"

	"hstin/gridwx/common"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
)

// Opener opens the data of one candidate. Errors matching ErrNotAvailable
// mean "try an older run"; any other error aborts the fetch.
type Opener interface {
	Open(ctx context.Context, c Candidate) ([]*grid.Dataset, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, c Candidate) ([]*grid.Dataset, error)

func (f OpenerFunc) Open(ctx context.Context, c Candidate) ([]*grid.Dataset, error) {
	return f(ctx, c)
}

// Attempt records one tried candidate.
type Attempt struct {
	Candidate Candidate
	Err       error
}

// Result is the outcome of a fetch.
type Result struct {
	Succeeded bool
	Candidate *Candidate
	Datasets  []*grid.Dataset
	Message   string
	Attempts  []Attempt
}

type Fetcher struct {
	opener  Opener
	scratch *Scratch
}

type FetcherOptions struct {
	Opener Opener
	// Scratch is the download directory of file based providers. Nil for
	// providers that read remotely.
	Scratch *Scratch
}

func NewFetcher(options FetcherOptions) *Fetcher {
	return &Fetcher{
		opener:  options.Opener,
		scratch: options.Scratch,
	}
}

// Fetch tries the candidates in order, each exactly once, and returns the
// subset datasets of the first one that opens.
func (f *Fetcher) Fetch(ctx context.Context, candidates []Candidate, window common.Window) (Result, error) {
	var result Result

	if f.scratch != nil {
		f.scratch.Lock()
		defer f.scratch.Unlock()
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			result.Message = "fetch cancelled"
			return result, fmt.Errorf("[FETCH] %s: %w", c, err)
		}

		if f.scratch != nil {
			f.scratch.Purge()
		}

		datasets, err := f.opener.Open(ctx, c)
		result.Attempts = append(result.Attempts, Attempt{Candidate: c, Err: err})

		if err != nil {
			if !IsNotAvailable(err) {
				result.Message = fmt.Sprintf("%s failed: %v", c, err)
				return result, fmt.Errorf("[FETCH] %s: %w", c, err)
			}

			reason, url := err.Error(), c.URL(nil)
			var unavailable *UnavailableError
			if errors.As(err, &unavailable) {
				reason, url = unavailable.Reason, unavailable.URL
			}

			Log.Warn().
				Str("model", c.Model).
				Str("run", common.RunLabel(c.Run)).
				Bool("prior_day", c.PriorDay).
				Str("url", url).
				Str("reason", reason).
				Msg("candidate not available, trying older run")

			if f.scratch != nil {
				f.scratch.Purge()
			}
			continue
		}

		subsets := make([]*grid.Dataset, 0, len(datasets))
		for _, ds := range datasets {
			sub, err := grid.Subset(ds, window)
			if err != nil {
				result.Message = fmt.Sprintf("%s subset failed: %v", c, err)
				return result, fmt.Errorf("[FETCH] %s: %w", c, err)
			}
			subsets = append(subsets, sub)
		}

		used := c
		result.Succeeded = true
		result.Candidate = &used
		result.Datasets = subsets
		result.Message = fmt.Sprintf("using %s", c)

		Log.Info().
			Str("model", c.Model).
			Str("run", common.RunLabel(c.Run)).
			Int("attempt", len(result.Attempts)).
			Msg("model run opened")

		return result, nil
	}

	if len(candidates) == 0 {
		result.Message = "no candidate runs in look-back window"
	} else {
		result.Message = fmt.Sprintf("%s: none of %d candidate runs available", candidates[0].Model, len(candidates))
	}
	Log.Error().Msg(result.Message)

	return result, fmt.Errorf("[FETCH] %s: %w", result.Message, ErrExhausted)
}
