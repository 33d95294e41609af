package main

import (
	"testing"

	"hstin/gridwx/models/base"
)

func TestParseProfiles(t *testing.T) {
	points, err := parseProfiles([]string{"39.7/-105", " 21.3 / -157.9"})
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 2 || points[0].Lat != 39.7 || points[1].Lon != -157.9 {
		t.Errorf("points = %+v", points)
	}

	for _, bad := range []string{"39.7,-105", "91/0", "0/181", "a/b"} {
		if _, err := parseProfiles([]string{bad}); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestSupportedProducts(t *testing.T) {
	rdpa := supportedProducts(base.Get(base.RDPA))
	if len(rdpa) != 1 || rdpa[0].Name != "precipitation" {
		t.Errorf("RDPA products = %v", rdpa)
	}

	for _, p := range supportedProducts(base.Get(base.GEFSMean)) {
		if p.Name == "wind_gust" || p.Name == "vorticity_500" {
			t.Errorf("GEFS mean offers %s", p.Name)
		}
	}
}
