package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAvailable marks a candidate whose data is not (yet) published.
	// Only errors matching it make the fetcher move on to the next candidate.
	ErrNotAvailable = errors.New("resource not available")

	// ErrExhausted is returned once every candidate was unavailable.
	ErrExhausted = errors.New("all candidates unavailable")
)

// UnavailableError carries the URL and reason of an unavailable resource.
type UnavailableError struct {
	URL    string
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.URL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrNotAvailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// NotAvailable builds an UnavailableError.
func NotAvailable(url, reason string, err error) error {
	return &UnavailableError{URL: url, Reason: reason, Err: err}
}

// IsNotAvailable reports whether err should trigger a fallback.
func IsNotAvailable(err error) bool {
	return errors.Is(err, ErrNotAvailable)
}

// CheckStatus classifies an HTTP status. Missing or forbidden resources and
// server errors (NOMADS answers 5xx while a run is being written) are
// reported as not available; other unexpected statuses are plain errors.
func CheckStatus(url string, status, want int) error {
	switch {
	case status == want:
		return nil
	case status == http.StatusNotFound, status == http.StatusForbidden, status == http.StatusGone, status >= 500:
		return NotAvailable(url, fmt.Sprintf("HTTP %d", status), nil)
	default:
		return fmt.Errorf("[DL] %s: unexpected HTTP %d", url, status)
	}
}
