package handlers

import (
	"testing"
	"time"
)

func TestParseQueryTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-08-27T15:04:05Z", time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{"2025-08-27T17:04:05.25+02:00", time.Date(2025, 8, 27, 15, 4, 5, 250_000_000, time.UTC), true},
		{"2025-08-27 15:04:05", time.Date(2025, 8, 27, 15, 4, 5, 0, time.UTC), true},
		{" 2025-08-27 ", time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC), true},
		{"27.08.2025", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := parseQueryTime(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("parseQueryTime(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
			continue
		}
		if tc.ok && (!got.Equal(tc.want) || got.Location() != time.UTC) {
			t.Errorf("parseQueryTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsDateOnly(t *testing.T) {
	if !isDateOnly("2025-08-27") {
		t.Fatal("bare date not detected")
	}
	if isDateOnly("2025-08-27T00:00:00Z") || isDateOnly("2025-08-27 10:00:00") {
		t.Fatal("date-time reported as date-only")
	}
}
