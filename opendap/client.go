package opendap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

var (
	// ErrNotFound means the server does not (yet) serve the dataset.
	ErrNotFound = errors.New("dataset not found")

	// ErrServer is a DAP error returned for a dataset that exists.
	ErrServer = errors.New("server error")
)

var messageRe = regexp.MustCompile(`message\s*=\s*"([^"]*)"`)

type Client struct {
	httpClient *http.Client
}

func NewClient(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Open fetches the DDS of a dataset. Nothing but the structure is read.
func (c *Client) Open(ctx context.Context, url string) (*Dataset, error) {
	body, err := c.get(ctx, url+".dds")
	if err != nil {
		var dapErr *dapError
		if errors.As(err, &dapErr) {
			// an error body instead of a DDS means the dataset is missing
			return nil, fmt.Errorf("[DAP] %s: %s: %w", url, dapErr.message, ErrNotFound)
		}
		return nil, err
	}

	if strings.Contains(body, "is not an available dataset") {
		return nil, fmt.Errorf("[DAP] %s: not an available dataset: %w", url, ErrNotFound)
	}

	ds, err := ParseDDS(body)
	if err != nil {
		return nil, fmt.Errorf("[DAP] %s: %w", url, err)
	}
	ds.URL = url

	return ds, nil
}

// Axes reads whole one dimensional variables, typically lat, lon and lev.
func (c *Client) Axes(ctx context.Context, ds *Dataset, names ...string) (map[string][]float64, error) {
	for _, name := range names {
		if ds.Size(name) == 0 {
			return nil, fmt.Errorf("[DAP] %s has no axis %q", ds.Name, name)
		}
	}

	arrays, err := c.ascii(ctx, ds.URL, strings.Join(names, ","))
	if err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(names))
	for _, name := range names {
		a, ok := arrays[name]
		if !ok {
			return nil, fmt.Errorf("[DAP] %s: axis %s missing from response", ds.Name, name)
		}
		out[name] = a.Values
	}

	return out, nil
}

// Slab reads a hyperslab of variable. ranges holds one inclusive [start,end]
// pair per dimension.
func (c *Client) Slab(ctx context.Context, ds *Dataset, variable string, ranges ...[2]int) (*Array, error) {
	dims := ds.Dims(variable)
	if dims == nil {
		return nil, fmt.Errorf("[DAP] %s has no variable %q", ds.Name, variable)
	}
	if len(ranges) != len(dims) {
		return nil, fmt.Errorf("[DAP] %s has %d dimensions, got %d ranges", variable, len(dims), len(ranges))
	}

	var b strings.Builder
	b.WriteString(variable)
	for i, r := range ranges {
		if r[0] < 0 || r[1] < r[0] || r[1] >= dims[i].Size {
			return nil, fmt.Errorf("[DAP] %s: range %v outside dimension %s of size %d", variable, r, dims[i].Name, dims[i].Size)
		}
		fmt.Fprintf(&b, "[%d:%d]", r[0], r[1])
	}

	arrays, err := c.ascii(ctx, ds.URL, b.String())
	if err != nil {
		return nil, err
	}

	a, ok := arrays[variable]
	if !ok {
		return nil, fmt.Errorf("[DAP] %s missing from response", variable)
	}

	return a, nil
}

var constraintEscaper = strings.NewReplacer("[", "%5B", "]", "%5D")

func (c *Client) ascii(ctx context.Context, url, constraint string) (map[string]*Array, error) {
	body, err := c.get(ctx, url+".ascii?"+constraintEscaper.Replace(constraint))
	if err != nil {
		return nil, err
	}

	arrays, err := ParseASCII(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	return arrays, nil
}

type dapError struct {
	url     string
	message string
}

func (e *dapError) Error() string {
	return fmt.Sprintf("[DAP] %s: %s", e.url, e.message)
}

func (e *dapError) Is(target error) bool {
	return target == ErrServer
}

func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("[DAP] creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("[DAP] getting %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[DAP] reading %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusGone,
		resp.StatusCode >= 500:
		return "", fmt.Errorf("[DAP] %s: HTTP %d: %w", url, resp.StatusCode, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("[DAP] %s: unexpected HTTP %d", url, resp.StatusCode)
	}

	body := string(data)
	if strings.HasPrefix(strings.TrimSpace(body), "Error {") {
		msg := "unknown error"
		if m := messageRe.FindStringSubmatch(body); m != nil {
			msg = m[1]
		}
		return "", &dapError{url: url, message: msg}
	}

	return body, nil
}
