package opendap

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dim is one named dimension of a DAP variable.
type Dim struct {
	Name string
	Size int
}

// Dataset is the structure of a remote dataset as described by its DDS.
type Dataset struct {
	URL  string
	Name string
	Vars map[string][]Dim
}

var (
	declRe = regexp.MustCompile(`^\s*(?:Byte|Int16|UInt16|Int32|UInt32|Float32|Float64|String|Url)\s+([\w.]+)((?:\s*\[[^\]]+\])*)\s*;`)
	dimRe  = regexp.MustCompile(`\[\s*(?:([\w.]+)\s*=\s*)?(\d+)\s*\]`)
	endRe  = regexp.MustCompile(`^\}\s*([^;\s]+)\s*;`)
)

// ParseDDS reads a dataset descriptor. Grid maps repeat their axis
// variables; the first declaration wins.
func ParseDDS(text string) (*Dataset, error) {
	ds := &Dataset{Vars: make(map[string][]Dim)}

	scanner := bufio.NewScanner(strings.NewReader(text))
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if first {
			if !strings.HasPrefix(strings.TrimSpace(line), "Dataset") {
				return nil, fmt.Errorf("[DAP] not a DDS, starts with %q", line)
			}
			first = false
			continue
		}

		if m := endRe.FindStringSubmatch(line); m != nil {
			ds.Name = m[1]
			continue
		}

		m := declRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := m[1]
		if _, seen := ds.Vars[name]; seen {
			continue
		}

		var dims []Dim
		for _, d := range dimRe.FindAllStringSubmatch(m[2], -1) {
			size, err := strconv.Atoi(d[2])
			if err != nil {
				return nil, fmt.Errorf("[DAP] dimension of %s: %w", name, err)
			}
			dims = append(dims, Dim{Name: d[1], Size: size})
		}
		ds.Vars[name] = dims
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[DAP] reading DDS: %w", err)
	}
	if first {
		return nil, fmt.Errorf("[DAP] empty DDS")
	}

	return ds, nil
}

// Dims returns the dimensions of a variable, nil if it does not exist.
func (d *Dataset) Dims(name string) []Dim {
	return d.Vars[name]
}

// Size returns the length of a one dimensional (axis) variable.
func (d *Dataset) Size(name string) int {
	dims := d.Vars[name]
	if len(dims) != 1 {
		return 0
	}
	return dims[0].Size
}
