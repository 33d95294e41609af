package opendap

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Array is one variable of an ASCII response.
type Array struct {
	Name   string
	Shape  []int
	Values []float64
}

func (a *Array) Len() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// MissingAbove is the magnitude beyond which GDS fill values are mapped to NaN.
const MissingAbove = 1e20

var (
	headerRe = regexp.MustCompile(`^([A-Za-z_][\w.]*),\s*((?:\[\d+\])+)\s*$`)
	indexRe  = regexp.MustCompile(`^(?:\[\d+\])+,\s*`)
	shapeRe  = regexp.MustCompile(`\[(\d+)\]`)
)

// ParseASCII decodes the ".ascii" response of a constraint expression.
// Arrays are keyed by their short name (the part after the last dot).
func ParseASCII(text string) (map[string]*Array, error) {
	out := make(map[string]*Array)
	var current *Array

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				name = name[i+1:]
			}
			current = &Array{Name: name}
			for _, s := range shapeRe.FindAllStringSubmatch(m[2], -1) {
				n, _ := strconv.Atoi(s[1])
				current.Shape = append(current.Shape, n)
			}
			current.Values = make([]float64, 0, current.Len())
			if _, dup := out[name]; !dup {
				out[name] = current
			}
			continue
		}

		if current == nil {
			// preamble such as "Dataset: gfs_0p25_00z"
			continue
		}

		line = indexRe.ReplaceAllString(line, "")
		for _, field := range strings.Split(line, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("[DAP] value %q of %s: %w", field, current.Name, err)
			}
			if math.Abs(v) > MissingAbove {
				v = math.NaN()
			}
			current.Values = append(current.Values, v)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("[DAP] reading ascii: %w", err)
	}

	for _, a := range out {
		if len(a.Values) != a.Len() {
			return nil, fmt.Errorf("[DAP] %s has %d values, shape %v", a.Name, len(a.Values), a.Shape)
		}
	}

	return out, nil
}
