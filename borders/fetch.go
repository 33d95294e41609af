package borders

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	. "hstin/gridwx/helper"
)

// DefaultBaseURL serves the Natural Earth shapefiles.
const DefaultBaseURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master"

// None disables border overlays.
const None = "none"

type ReferenceDetails struct {
	Description string
	// Folder below the base URL.
	Folder string
	// Basename of the shapefile without extension.
	Basename string
}

// References are the border sets a map can be drawn with.
var References map[string]ReferenceDetails = map[string]ReferenceDetails{
	"states": {
		Description: "state and province lines",
		Folder:      "50m_cultural",
		Basename:    "ne_50m_admin_1_states_provinces_lines",
	},
	"countries": {
		Description: "country boundaries",
		Folder:      "50m_cultural",
		Basename:    "ne_50m_admin_0_boundary_lines_land",
	},
	"counties": {
		Description: "US county lines",
		Folder:      "10m_cultural",
		Basename:    "ne_10m_admin_2_counties_lakes",
	},
}

// shapefile parts needed to read geometries
var extensions = []string{".shp", ".shx", ".dbf"}

type FetchOptions struct {
	Dir        string
	BaseURL    string
	HTTPClient *http.Client
}

// Names lists the available border sets, including None.
func Names() []string {
	names := []string{None}
	for name := range References {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// Path returns the .shp path of a border set below dir.
func Path(dir, name string) (string, error) {
	details, ok := References[name]
	if !ok {
		return "", fmt.Errorf("unknown borders %q", name)
	}
	return filepath.Join(dir, details.Basename+".shp"), nil
}

// EnsureReferences downloads the files of the named border sets that are not
// in opts.Dir yet. Files already present are left alone.
func EnsureReferences(ctx context.Context, opts FetchOptions, names ...string) error {
	if err := os.MkdirAll(opts.Dir, os.ModePerm); err != nil {
		return fmt.Errorf("[BORDERS] creating %s: %w", opts.Dir, err)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(DefaultHTTPTimeout)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, name := range names {
		if name == None {
			continue
		}
		details, ok := References[name]
		if !ok {
			return fmt.Errorf("[BORDERS] unknown borders %q", name)
		}

		for _, ext := range extensions {
			file := details.Basename + ext
			dest := filepath.Join(opts.Dir, file)
			if _, err := os.Stat(dest); err == nil {
				continue
			}

			wg.Add(1)
			go func(url, file, dest string) {
				defer wg.Done()
				Log.Info().Msg("Need to download border file " + file)

				if err := download(ctx, opts.HTTPClient, url, dest); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(baseURL+"/"+details.Folder+"/"+file, file, dest)
		}
	}

	wg.Wait()

	return firstErr
}

func download(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("[BORDERS] creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("[BORDERS] downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("[BORDERS] downloading %s: HTTP %d", url, resp.StatusCode)
	}

	tmp := dest + ".part"
	outFile, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("[BORDERS] creating file: %w", err)
	}

	if _, err := io.Copy(outFile, resp.Body); err != nil {
		outFile.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("[BORDERS] writing %s: %w", dest, err)
	}
	if err := outFile.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("[BORDERS] closing %s: %w", dest, err)
	}

	return os.Rename(tmp, dest)
}
