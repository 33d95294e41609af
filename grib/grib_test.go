package grib

import (
	"encoding/binary"
	"errors"
	"testing"
)

// message builds a GRIB2 shell of n bytes with valid framing.
func message(n int) []byte {
	m := make([]byte, n)
	copy(m, "GRIB")
	m[7] = 2
	binary.BigEndian.PutUint64(m[8:16], uint64(n))
	copy(m[n-4:], "7777")
	return m
}

func TestCheck(t *testing.T) {
	whole := message(64)
	two := append(message(40), message(32)...)

	if err := Check(whole); err != nil {
		t.Errorf("whole message: %v", err)
	}
	if err := Check(two); err != nil {
		t.Errorf("two messages: %v", err)
	}

	incomplete := map[string][]byte{
		"empty":     nil,
		"html":      []byte("<html><body>404 Not Found</body></html>"),
		"truncated": whole[:50],
		"no end":    append(message(60)[:56], 'x', 'x', 'x', 'x'),
		"trailing":  append(message(40), []byte("GRIBxx")...),
	}
	for name, data := range incomplete {
		if err := Check(data); !errors.Is(err, ErrIncomplete) {
			t.Errorf("%s: expected ErrIncomplete, got %v", name, err)
		}
	}

	edition1 := message(40)
	edition1[7] = 1
	if err := Check(edition1); err == nil || errors.Is(err, ErrIncomplete) {
		t.Errorf("edition 1: %v", err)
	}
}
