package common

import (
	"fmt"
	"strings"
	"time"
)

// RunLabel formats a model initialization time the way output files are named.
func RunLabel(run time.Time) string {
	return run.UTC().Format("20060102") + fmt.Sprintf("_%02dz", run.UTC().Hour())
}

// ValidTime is the time a forecast hour of a run verifies at.
func ValidTime(run time.Time, forecastHour int) time.Time {
	return run.UTC().Add(time.Duration(forecastHour) * time.Hour)
}

// ExpandURL fills {name} placeholders of a provider template. A ":U" or ":L"
// suffix upper- or lower-cases the value, e.g. {var:L}.
func ExpandURL(format string, values map[string]string) string {
	var b strings.Builder

	for {
		start := strings.IndexByte(format, '{')
		if start < 0 {
			b.WriteString(format)
			break
		}
		end := strings.IndexByte(format[start:], '}')
		if end < 0 {
			b.WriteString(format)
			break
		}
		end += start

		b.WriteString(format[:start])
		key := format[start+1 : end]

		modifier := ""
		if i := strings.IndexByte(key, ':'); i >= 0 {
			key, modifier = key[:i], key[i+1:]
		}

		value, ok := values[key]
		if !ok {
			b.WriteString(format[start : end+1])
		} else {
			switch modifier {
			case "U":
				value = strings.ToUpper(value)
			case "L":
				value = strings.ToLower(value)
			}
			b.WriteString(value)
		}

		format = format[end+1:]
	}

	return b.String()
}

// RunValues returns the placeholders shared by every provider template.
func RunValues(run time.Time) map[string]string {
	run = run.UTC()
	return map[string]string{
		"date": run.Format("20060102"),
		"year": run.Format("2006"),
		"hour": fmt.Sprintf("%02d", run.Hour()),
	}
}
