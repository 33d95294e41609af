package common

import (
	"fmt"
	"sort"
	"strings"
)

// Regions are the built-in map presets, keyed by lower-case name.
var Regions = map[string]Window{
	"conus":         {West: -126, East: -66, South: 23, North: 50},
	"north_america": {West: -170, East: -50, South: 10, North: 75},
	"west":          {West: -125, East: -102, South: 30, North: 50},
	"california":    {West: -125, East: -113.5, South: 32, North: 42.5},
	"northwest":     {West: -125, East: -110, South: 41, North: 49.5},
	"great_basin":   {West: -120.5, East: -108.5, South: 35, North: 46},
	"southwest":     {West: -115, East: -102, South: 31, North: 37.5},
	"rockies":       {West: -111.5, East: -100, South: 36.5, North: 45.5},
	"southern":      {West: -107, East: -75, South: 24, North: 38},
	"eastern":       {West: -97.5, East: -66, South: 36, North: 49.5},
	"alaska":        {West: -170, East: -129, South: 51, North: 72},
	"hawaii":        {West: -161, East: -154, South: 18.5, North: 22.5},
	"canada":        {West: -141, East: -52, South: 41.5, North: 70},
	"global":        {West: -180, East: 180, South: -90, North: 90},
}

// LookupRegion resolves a preset name against the given table.
func LookupRegion(table map[string]Window, name string) (Window, error) {
	w, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Window{}, fmt.Errorf("unknown region %q (available: %s)", name, strings.Join(RegionNames(table), ", "))
	}
	return w, nil
}

func RegionNames(table map[string]Window) []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
