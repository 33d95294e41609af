package helper

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// DefaultHTTPTimeout bounds a whole request, body included.
const DefaultHTTPTimeout = 2 * time.Minute

// NewHTTPClient returns the client shared by all providers. NOMADS and the
// datamart mirrors negotiate HTTP/2 over TLS, so the transport is upgraded
// when possible.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		Log.Warn().Err(err).Msg("http2 transport not configured, using HTTP/1.1")
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
